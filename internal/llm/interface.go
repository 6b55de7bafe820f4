package llm

import (
	"context"

	"applypilot/pkg/models"
)

// LLMProvider defines the interface for LLM providers
type LLMProvider interface {
	// ExtractListings processes search-results HTML and extracts the job
	// listings it contains
	ExtractListings(ctx context.Context, html, sourceURL string) ([]models.JobListing, error)

	// IsHealthy checks if the LLM provider is healthy and available
	IsHealthy(ctx context.Context) error

	// GetProviderName returns the name of the LLM provider
	GetProviderName() string
}
