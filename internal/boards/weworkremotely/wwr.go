package weworkremotely

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mendableai/firecrawl-go"

	"applypilot/internal/boards"
	"applypilot/internal/config"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
)

const (
	boardName = "weworkremotely"
	baseURL   = "https://weworkremotely.com"
)

// Adapter searches We Work Remotely through Firecrawl. The board is a pure
// listing site without a native apply flow, so Apply always skips.
type Adapter struct {
	config *config.Config
	app    *firecrawl.FirecrawlApp
	logger logging.Logger
}

// New creates a We Work Remotely adapter. Returns an error when the
// Firecrawl client cannot be initialized.
func New(cfg *config.Config) (*Adapter, error) {
	app, err := firecrawl.NewFirecrawlApp(cfg.Firecrawl.APIKey, cfg.Firecrawl.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firecrawl: %w", err)
	}

	return &Adapter{
		config: cfg,
		app:    app,
		logger: logging.GetGlobalLogger().WithField("board", boardName),
	}, nil
}

// Name identifies the board
func (a *Adapter) Name() string {
	return boardName
}

// Search scrapes the We Work Remotely search page for one title query. The
// board lists remote roles only, so non-remote queries return nothing and
// the location narrows by each listing's region text.
func (a *Adapter) Search(ctx context.Context, query boards.SearchQuery) ([]models.JobListing, error) {
	if !query.IncludeRemote {
		return nil, nil
	}

	searchURL := baseURL + "/remote-jobs/search?term=" + url.QueryEscape(query.Title)

	html, err := a.scrape(ctx, searchURL)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	listings, err := ParseSearchResults(html, query.Location)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}

	a.logger.Info("Search completed", map[string]interface{}{
		"title":    query.Title,
		"location": query.Location,
		"listings": len(listings),
	})

	return listings, nil
}

// Apply always skips: listings link to each company's own application page
func (a *Adapter) Apply(ctx context.Context, listing models.JobListing, profile models.UserProfile) (models.ApplyOutcome, error) {
	return models.ApplyOutcome{
		Status: models.ApplyStatusSkipped,
		Reason: "external application only",
		Detail: "we work remotely listings link to the company's own application page",
	}, nil
}

// scrape fetches the page HTML through Firecrawl with retries
func (a *Adapter) scrape(ctx context.Context, pageURL string) (string, error) {
	params := &firecrawl.ScrapeParams{
		Formats: []string{"html"},
	}

	var doc *firecrawl.FirecrawlDocument
	var err error

	for attempt := 1; attempt <= a.config.Firecrawl.MaxRetries; attempt++ {
		doc, err = a.app.ScrapeURL(pageURL, params)
		if err == nil {
			break
		}

		a.logger.Warn("Firecrawl scrape attempt failed", map[string]interface{}{
			"attempt": attempt,
			"url":     pageURL,
			"error":   err.Error(),
		})

		if attempt < a.config.Firecrawl.MaxRetries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	if err != nil {
		return "", fmt.Errorf("firecrawl scraping failed after %d attempts: %w", a.config.Firecrawl.MaxRetries, err)
	}
	if doc == nil || doc.HTML == "" {
		return "", fmt.Errorf("no HTML returned from Firecrawl")
	}

	return doc.HTML, nil
}

// ParseSearchResults scrapes the job list sections out of a search page.
// Exported so tests can exercise the selector logic against fixture HTML.
func ParseSearchResults(html, location string) ([]models.JobListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	var listings []models.JobListing
	doc.Find("section.jobs li").Each(func(i int, item *goquery.Selection) {
		// Section headers and the view-all footer share the li tag
		link := item.Find("a[href^='/remote-jobs/']").First()
		href, ok := link.Attr("href")
		if !ok || strings.Contains(href, "/search") {
			return
		}

		title := strings.TrimSpace(item.Find("span.title").First().Text())
		if title == "" {
			return
		}

		region := strings.TrimSpace(item.Find("span.region").First().Text())
		if location != "" && region != "" && !regionMatches(region, location) {
			return
		}

		listings = append(listings, models.JobListing{
			Board:    boardName,
			Title:    title,
			Company:  strings.TrimSpace(item.Find("span.company").First().Text()),
			Location: region,
			URL:      baseURL + href,
			Remote:   true,
		})
	})

	return listings, nil
}

// regionMatches checks a listing's region tag against the queried location.
// Listings open to anywhere always match.
func regionMatches(region, location string) bool {
	regionLower := strings.ToLower(region)
	if strings.Contains(regionLower, "anywhere") || strings.Contains(regionLower, "worldwide") {
		return true
	}
	return strings.Contains(regionLower, strings.ToLower(location))
}
