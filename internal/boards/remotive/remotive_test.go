package remotive_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"applypilot/internal/boards"
	"applypilot/internal/boards/remotive"
	"applypilot/pkg/models"
)

const samplePayload = `{
	"job-count": 3,
	"jobs": [
		{
			"id": 1,
			"url": "https://remotive.com/remote-jobs/software-dev/backend-engineer-1",
			"title": "Backend Engineer",
			"company_name": "Acme",
			"candidate_required_location": "Worldwide",
			"salary": "$90,000 - $120,000"
		},
		{
			"id": 2,
			"url": "https://remotive.com/remote-jobs/software-dev/go-developer-2",
			"title": "Go Developer",
			"company_name": "Initech",
			"candidate_required_location": "Europe",
			"salary": ""
		},
		{
			"id": 3,
			"url": "",
			"title": "Broken Listing",
			"company_name": "Nowhere",
			"candidate_required_location": "Worldwide"
		}
	]
}`

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *remotive.Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return remotive.NewWithBaseURL(srv.URL)
}

// Search must map API listings onto the common shape, flag them remote and
// drop entries without a URL.
func TestSearch_MapsListings(t *testing.T) {
	var gotQuery string
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("search")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	})

	listings, err := adapter.Search(context.Background(), boards.SearchQuery{
		Title:         "Backend Engineer",
		IncludeRemote: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if gotQuery != "Backend Engineer" {
		t.Errorf("search parameter = %q, want the queried title", gotQuery)
	}
	if len(listings) != 2 {
		t.Fatalf("Search returned %d listings, want 2 (URL-less entry dropped)", len(listings))
	}

	first := listings[0]
	if first.Board != "remotive" {
		t.Errorf("board = %q, want remotive", first.Board)
	}
	if !first.Remote {
		t.Error("remotive listing not flagged remote")
	}
	if first.Company != "Acme" || first.SalaryText != "$90,000 - $120,000" {
		t.Errorf("listing mapping wrong: %+v", first)
	}
}

// The location filter keeps worldwide listings and listings matching the
// queried region, and drops the rest.
func TestSearch_LocationNarrows(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePayload))
	})

	listings, err := adapter.Search(context.Background(), boards.SearchQuery{
		Title:         "Engineer",
		Location:      "Europe",
		IncludeRemote: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// Worldwide always matches, Europe matches, nothing else remains
	if len(listings) != 2 {
		t.Errorf("Search returned %d listings for Europe, want 2", len(listings))
	}
}

// A query that excludes remote work returns nothing without touching the API.
func TestSearch_NonRemoteQueryShortCircuits(t *testing.T) {
	called := false
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	listings, err := adapter.Search(context.Background(), boards.SearchQuery{
		Title:         "Engineer",
		IncludeRemote: false,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if listings != nil {
		t.Errorf("non-remote query returned %d listings, want none", len(listings))
	}
	if called {
		t.Error("non-remote query still hit the API")
	}
}

// A non-200 response surfaces as an adapter error naming the board.
func TestSearch_UpstreamErrorIsAdapterError(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := adapter.Search(context.Background(), boards.SearchQuery{Title: "Engineer", IncludeRemote: true})
	if err == nil {
		t.Fatal("Search against failing upstream succeeded")
	}

	var adapterErr *boards.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("Search error is %T, want *boards.AdapterError", err)
	}
	if adapterErr.Board != "remotive" || adapterErr.Op != "search" {
		t.Errorf("adapter error = %s/%s, want remotive/search", adapterErr.Board, adapterErr.Op)
	}
}

// Apply never submits anything on Remotive: the outcome is always a skip.
func TestApply_AlwaysSkips(t *testing.T) {
	adapter := remotive.New()

	outcome, err := adapter.Apply(context.Background(), models.JobListing{URL: "https://remotive.com/x"}, models.UserProfile{})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if outcome.Status != models.ApplyStatusSkipped {
		t.Errorf("Apply outcome = %s, want skipped", outcome.Status)
	}
	if outcome.Reason == "" {
		t.Error("skip outcome carries no reason")
	}
}
