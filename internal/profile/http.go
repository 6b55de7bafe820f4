package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"applypilot/internal/config"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
)

// HTTPProvider fetches applicant profiles from the profile service over HTTP
type HTTPProvider struct {
	baseURL    string
	authToken  string
	maxRetries int
	client     *http.Client
	logger     logging.Logger
}

// NewHTTPProvider creates a profile provider backed by the profile service
func NewHTTPProvider(cfg *config.Config, logger logging.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL:    cfg.Profile.BaseURL,
		authToken:  cfg.Profile.AuthToken,
		maxRetries: cfg.Profile.MaxRetries,
		client:     &http.Client{Timeout: cfg.Profile.Timeout},
		logger:     logger,
	}
}

// GetProfile fetches the profile for the given user, retrying transient
// failures with a short backoff
func (p *HTTPProvider) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	endpoint := fmt.Sprintf("%s/api/v1/profiles/%s", p.baseURL, url.PathEscape(userID))

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		prof, err := p.fetchOnce(ctx, endpoint)
		if err == nil {
			return prof, nil
		}
		if err == ErrProfileNotFound {
			return nil, err
		}
		lastErr = err

		p.logger.Warn("Profile fetch attempt failed", map[string]interface{}{
			"user_id": userID,
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
	}

	return nil, fmt.Errorf("profile fetch failed after %d attempts: %w", p.maxRetries, lastErr)
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, endpoint string) (*models.UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrProfileNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("profile service returned %d: %s", resp.StatusCode, string(body))
	}

	var prof models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&prof); err != nil {
		return nil, fmt.Errorf("failed to decode profile response: %w", err)
	}

	return &prof, nil
}
