package indeed

import (
	"strings"
	"testing"

	"applypilot/internal/boards"
	"applypilot/internal/config"
)

const cardFixture = `
<html><body>
<div class="jobsearch-ResultsList">
  <div class="job_seen_beacon">
    <h2 class="jobTitle"><a href="/rc/clk?jk=abc123">Backend Engineer</a></h2>
    <span data-testid="company-name">Acme</span>
    <div data-testid="text-location">Paris (75)</div>
    <div data-testid="attribute_snippet_testid">€55,000 - €70,000 a year</div>
  </div>
  <div class="job_seen_beacon">
    <h2 class="jobTitle"><a href="https://www.indeed.com/viewjob?jk=def456">Go Developer</a></h2>
    <span data-testid="company-name">Initech</span>
    <div data-testid="text-location">Remote in France</div>
  </div>
  <div class="job_seen_beacon">
    <h2 class="jobTitle"><a href="/rc/clk?jk=empty"></a></h2>
  </div>
</div>
</body></html>`

func testAdapter() *Adapter {
	cfg := &config.Config{}
	return New(nil, nil, nil, cfg)
}

// Cards parse into listings with absolute URLs; title-less cards are dropped.
func TestParseSearchResults(t *testing.T) {
	listings, err := testAdapter().parseSearchResults(cardFixture)
	if err != nil {
		t.Fatalf("parseSearchResults failed: %v", err)
	}

	if len(listings) != 2 {
		t.Fatalf("parsed %d listings, want 2", len(listings))
	}

	first := listings[0]
	if first.Title != "Backend Engineer" || first.Company != "Acme" {
		t.Errorf("first listing = %q at %q", first.Title, first.Company)
	}
	if !strings.HasPrefix(first.URL, "https://www.indeed.com/") {
		t.Errorf("relative href not resolved: %q", first.URL)
	}
	if first.SalaryText == "" {
		t.Error("salary snippet not captured")
	}
	if first.Remote {
		t.Error("Paris listing flagged remote")
	}

	second := listings[1]
	if !second.Remote {
		t.Error("remote-located listing not flagged remote")
	}
	if second.URL != "https://www.indeed.com/viewjob?jk=def456" {
		t.Errorf("absolute href rewritten: %q", second.URL)
	}
}

// The search URL carries the query, location and remote filter, and folds
// the salary floor into the q parameter.
func TestBuildSearchURL(t *testing.T) {
	a := testAdapter()

	u := a.buildSearchURL(boards.SearchQuery{Title: "Go Developer", Location: "Paris", SalaryMin: 60000})
	if !strings.Contains(u, "q=Go+Developer+%2460000") {
		t.Errorf("salary floor missing from query: %q", u)
	}
	if !strings.Contains(u, "l=Paris") {
		t.Errorf("location missing: %q", u)
	}

	remote := a.buildSearchURL(boards.SearchQuery{Title: "Go Developer", IncludeRemote: true})
	if !strings.Contains(remote, "l=Remote") {
		t.Errorf("empty location with remote flag should target Remote: %q", remote)
	}
}
