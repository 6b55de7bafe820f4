package indeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"

	"applypilot/internal/boards"
	"applypilot/internal/browser"
	"applypilot/internal/captcha"
	"applypilot/internal/config"
	"applypilot/internal/llm"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
)

const (
	boardName = "indeed"
	baseURL   = "https://www.indeed.com"
)

// Adapter searches and applies on Indeed through a headless browser. Every
// Search and Apply call acquires its own browser instance and releases it
// before returning.
type Adapter struct {
	engine *browser.Engine
	solver captcha.Solver
	llm    *llm.Manager
	config *config.Config
	logger logging.Logger
}

// New creates an Indeed adapter. The LLM manager is optional and only used
// as an extraction fallback when selector parsing finds nothing.
func New(engine *browser.Engine, solver captcha.Solver, llmManager *llm.Manager, cfg *config.Config) *Adapter {
	return &Adapter{
		engine: engine,
		solver: solver,
		llm:    llmManager,
		config: cfg,
		logger: logging.GetGlobalLogger().WithField("board", boardName),
	}
}

// Name identifies the board
func (a *Adapter) Name() string {
	return boardName
}

// Search navigates the Indeed search results page for one title×location
// query and scrapes the listing cards
func (a *Adapter) Search(ctx context.Context, query boards.SearchQuery) ([]models.JobListing, error) {
	inst, err := a.engine.Acquire(ctx)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}
	defer inst.Release()

	searchURL := a.buildSearchURL(query)
	if err := inst.Navigate(ctx, searchURL, a.config.Browser.RequestTimeout); err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	html, err := inst.HTML()
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	html, err = a.passCaptchaIfPresent(ctx, inst, html, searchURL)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	listings, err := a.parseSearchResults(html)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	// Selector drift on the results page leaves zero cards; let the LLM
	// have a go at the raw HTML before reporting nothing
	if len(listings) == 0 && a.llm != nil && a.llm.IsHealthy() {
		a.logger.Warn("No listings via selectors, falling back to LLM extraction", map[string]interface{}{
			"url": searchURL,
		})
		extracted, llmErr := a.llm.ExtractListings(ctx, html, searchURL)
		if llmErr != nil {
			a.logger.Warn("LLM extraction fallback failed", map[string]interface{}{
				"url":   searchURL,
				"error": llmErr.Error(),
			})
		} else {
			for i := range extracted {
				extracted[i].Board = boardName
			}
			listings = extracted
		}
	}

	a.logger.Info("Search completed", map[string]interface{}{
		"title":    query.Title,
		"location": query.Location,
		"listings": len(listings),
	})

	return listings, nil
}

// buildSearchURL assembles the results URL for one query. Salary bounds ride
// inside the q parameter, the way Indeed's own UI encodes them.
func (a *Adapter) buildSearchURL(query boards.SearchQuery) string {
	q := query.Title
	if query.SalaryMin > 0 {
		q = fmt.Sprintf("%s $%d", q, query.SalaryMin)
	}

	params := url.Values{}
	params.Set("q", q)
	if query.Location != "" {
		params.Set("l", query.Location)
	} else if query.IncludeRemote {
		params.Set("l", "Remote")
	}
	if query.IncludeRemote {
		params.Set("sc", "0kf:attr(DSQF7);")
	}

	return baseURL + "/jobs?" + params.Encode()
}

// parseSearchResults scrapes the listing cards out of a results page
func (a *Adapter) parseSearchResults(html string) ([]models.JobListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var listings []models.JobListing
	doc.Find(".job_seen_beacon, .jobsearch-SerpJobCard").Each(func(i int, card *goquery.Selection) {
		titleLink := card.Find("h2.jobTitle a").First()
		title := strings.TrimSpace(titleLink.Text())
		if title == "" {
			title = strings.TrimSpace(card.Find("h2.jobTitle span[title]").AttrOr("title", ""))
		}

		href, _ := titleLink.Attr("href")
		if title == "" || href == "" {
			return
		}

		location := strings.TrimSpace(card.Find("[data-testid='text-location'], .companyLocation").First().Text())

		listings = append(listings, models.JobListing{
			Board:      boardName,
			Title:      title,
			Company:    strings.TrimSpace(card.Find("[data-testid='company-name'], .companyName").First().Text()),
			Location:   location,
			URL:        resolveURL(href),
			Remote:     strings.Contains(strings.ToLower(location), "remote"),
			SalaryText: strings.TrimSpace(card.Find("[data-testid='attribute_snippet_testid'], .salary-snippet-container").First().Text()),
		})
	})

	return listings, nil
}

// Apply opens the listing and attempts its one-click apply flow. A listing
// that routes to an external site has no such flow and is a skip, not an
// error.
func (a *Adapter) Apply(ctx context.Context, listing models.JobListing, profile models.UserProfile) (models.ApplyOutcome, error) {
	inst, err := a.engine.Acquire(ctx)
	if err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}
	defer inst.Release()

	if err := inst.Navigate(ctx, listing.URL, a.config.Browser.RequestTimeout); err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}

	html, err := inst.HTML()
	if err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}

	if _, err := a.passCaptchaIfPresent(ctx, inst, html, listing.URL); err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}

	page := inst.Page()

	var applyButton *rod.Element
	if err := rod.Try(func() {
		applyButton = page.Context(ctx).MustElement("#indeedApplyButton, .ia-IndeedApplyButton, button[data-testid='indeedApplyButton']")
	}); err != nil {
		return models.ApplyOutcome{
			Status: models.ApplyStatusSkipped,
			Reason: "no one-click apply",
			Detail: "listing has no native apply button",
		}, nil
	}

	if err := rod.Try(func() {
		applyButton.MustClick()
		page.Context(ctx).MustWaitStable()
	}); err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", fmt.Errorf("apply button click failed: %w", err))
	}

	if err := a.fillApplicationForm(ctx, page, profile); err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}

	if err := rod.Try(func() {
		page.Context(ctx).MustElement("button[type='submit'], .ia-continueButton").MustClick()
		page.Context(ctx).MustWaitStable()
	}); err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", fmt.Errorf("submit failed: %w", err))
	}

	confirmation, err := inst.HTML()
	if err != nil {
		return models.ApplyOutcome{}, boards.NewAdapterError(boardName, "apply", err)
	}

	lower := strings.ToLower(confirmation)
	if strings.Contains(lower, "application submitted") || strings.Contains(lower, "applied") {
		return models.ApplyOutcome{Status: models.ApplyStatusApplied}, nil
	}

	return models.ApplyOutcome{
		Status: models.ApplyStatusError,
		Reason: "no submission confirmation",
		Detail: "submit flow finished without a confirmation page",
	}, nil
}

// fillApplicationForm fills whatever contact fields the apply modal renders.
// Fields Indeed pre-fills from the signed-in account are left alone.
func (a *Adapter) fillApplicationForm(ctx context.Context, page *rod.Page, profile models.UserProfile) error {
	fields := []struct {
		selector string
		value    string
	}{
		{"input[name*='name' i]:not([name*='company' i])", profile.FullName},
		{"input[type='email']", profile.Email},
		{"input[type='tel'], input[name*='phone' i]", profile.Phone},
	}

	for _, field := range fields {
		if field.value == "" {
			continue
		}
		// Absent fields are fine, failed input on a present field is not
		var el *rod.Element
		if err := rod.Try(func() {
			el = page.Context(ctx).MustElement(field.selector)
		}); err != nil {
			continue
		}
		if err := rod.Try(func() {
			el.MustSelectAllText().MustInput(field.value)
		}); err != nil {
			return fmt.Errorf("failed to fill field %s: %w", field.selector, err)
		}
	}

	return nil
}

// passCaptchaIfPresent detects a captcha interstitial, solves it through the
// configured solver and injects the token. Returns the page HTML after the
// challenge is out of the way.
func (a *Adapter) passCaptchaIfPresent(ctx context.Context, inst *browser.Instance, html, pageURL string) (string, error) {
	found, siteKey := captcha.DetectCaptcha(html)
	if !found {
		return html, nil
	}
	if a.solver == nil || !a.solver.IsHealthy() {
		return "", fmt.Errorf("captcha challenge present and no solver available")
	}

	a.logger.Info("Captcha detected, solving", map[string]interface{}{"url": pageURL})

	var token string
	var err error
	if key, ok := strings.CutPrefix(siteKey, "turnstile:"); ok {
		token, err = a.solver.SolveTurnstile(ctx, key, pageURL)
	} else {
		token, err = a.solver.SolveRecaptcha(ctx, siteKey, pageURL)
	}
	if err != nil {
		return "", fmt.Errorf("captcha solve failed: %w", err)
	}

	injection := fmt.Sprintf(`() => {
		let responseElements = document.querySelectorAll('[name="g-recaptcha-response"], [name="cf-turnstile-response"]');
		for (let element of responseElements) {
			element.value = '%s';
			element.innerHTML = '%s';
		}
		let forms = document.querySelectorAll('form');
		for (let form of forms) {
			if (form.querySelector('[name="g-recaptcha-response"]') || form.querySelector('[name="cf-turnstile-response"]')) {
				form.submit();
				break;
			}
		}
	}`, token, token)

	if err := rod.Try(func() {
		inst.Page().Context(ctx).MustEval(injection)
		inst.Page().Context(ctx).MustWaitLoad()
	}); err != nil {
		return "", fmt.Errorf("captcha token injection failed: %w", err)
	}

	return inst.HTML()
}

func resolveURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return baseURL + href
}
