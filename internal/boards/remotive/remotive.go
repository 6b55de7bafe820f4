package remotive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"applypilot/internal/boards"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
)

const (
	boardName      = "remotive"
	defaultBaseURL = "https://remotive.com/api/remote-jobs"
	searchLimit    = 50
	httpTimeout    = 15 * time.Second
)

// Adapter searches the Remotive public API. Every listing is remote by
// definition, and Remotive has no native apply flow, so Apply always skips.
type Adapter struct {
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// New creates a Remotive adapter against the public API
func New() *Adapter {
	return NewWithBaseURL(defaultBaseURL)
}

// NewWithBaseURL creates an adapter against a specific endpoint. Tests point
// it at a local server.
func NewWithBaseURL(baseURL string) *Adapter {
	return &Adapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: httpTimeout},
		logger:  logging.GetGlobalLogger().WithField("board", boardName),
	}
}

// Name identifies the board
func (a *Adapter) Name() string {
	return boardName
}

// remotiveResponse mirrors the top-level Remotive JSON response
type remotiveResponse struct {
	JobCount int           `json:"job-count"`
	Jobs     []remotiveJob `json:"jobs"`
}

// remotiveJob mirrors a single Remotive listing
type remotiveJob struct {
	ID                        int    `json:"id"`
	URL                       string `json:"url"`
	Title                     string `json:"title"`
	CompanyName               string `json:"company_name"`
	CandidateRequiredLocation string `json:"candidate_required_location"`
	Salary                    string `json:"salary"`
	JobType                   string `json:"job_type"`
	PublicationDate           string `json:"publication_date"`
}

// Search queries the Remotive API for one title. The board only lists remote
// roles, so a query that excludes remote work returns nothing, and the
// location field narrows by the candidate-required-location text.
func (a *Adapter) Search(ctx context.Context, query boards.SearchQuery) ([]models.JobListing, error) {
	if !query.IncludeRemote {
		return nil, nil
	}

	params := url.Values{}
	params.Set("search", query.Title)
	params.Set("limit", fmt.Sprintf("%d", searchLimit))

	reqURL := a.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, boards.NewAdapterError(boardName, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, boards.NewAdapterError(boardName, "search",
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	var payload remotiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, boards.NewAdapterError(boardName, "search", fmt.Errorf("failed to decode response: %w", err))
	}

	var listings []models.JobListing
	for _, job := range payload.Jobs {
		if job.URL == "" || job.Title == "" {
			continue
		}
		if !matchesLocation(job.CandidateRequiredLocation, query.Location) {
			continue
		}
		listings = append(listings, models.JobListing{
			Board:      boardName,
			Title:      job.Title,
			Company:    job.CompanyName,
			Location:   job.CandidateRequiredLocation,
			URL:        job.URL,
			Remote:     true,
			SalaryText: job.Salary,
		})
	}

	a.logger.Info("Search completed", map[string]interface{}{
		"title":    query.Title,
		"location": query.Location,
		"listings": len(listings),
	})

	return listings, nil
}

// Apply always skips: Remotive links out to each company's own application
// page and offers no native flow to automate
func (a *Adapter) Apply(ctx context.Context, listing models.JobListing, profile models.UserProfile) (models.ApplyOutcome, error) {
	return models.ApplyOutcome{
		Status: models.ApplyStatusSkipped,
		Reason: "external application only",
		Detail: "remotive listings link to the company's own application page",
	}, nil
}

// matchesLocation checks the candidate-required-location text against the
// query location. An empty query location, or a listing open worldwide,
// always matches.
func matchesLocation(required, queried string) bool {
	if queried == "" {
		return true
	}
	requiredLower := strings.ToLower(required)
	if requiredLower == "" || strings.Contains(requiredLower, "worldwide") || strings.Contains(requiredLower, "anywhere") {
		return true
	}
	return strings.Contains(requiredLower, strings.ToLower(queried))
}
