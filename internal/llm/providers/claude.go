package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"applypilot/internal/config"
	"applypilot/internal/llm/processors"
	"applypilot/internal/logging"
	"applypilot/pkg/models"
)

// ClaudeProvider implements the LLM provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client      anthropic.Client
	config      *config.Config
	htmlCleaner *processors.HTMLCleaner
	logger      logging.Logger
}

// NewClaudeProvider creates a new Claude provider instance
func NewClaudeProvider(cfg *config.Config) *ClaudeProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(cfg.LLM.APIKey),
	)

	return &ClaudeProvider{
		client:      client,
		config:      cfg,
		htmlCleaner: processors.NewHTMLCleaner(),
		logger:      logging.GetGlobalLogger(),
	}
}

// ExtractListings processes search-results HTML and extracts job listings
// using Claude
func (cp *ClaudeProvider) ExtractListings(ctx context.Context, html, sourceURL string) ([]models.JobListing, error) {
	startTime := time.Now()

	cp.logger.Info("Starting listing extraction with Claude", map[string]interface{}{
		"source_url":  sourceURL,
		"html_length": len(html),
		"provider":    "claude",
	})

	cleanedContent, err := cp.htmlCleaner.ExtractResultsContent(html)
	if err != nil {
		return nil, fmt.Errorf("failed to clean HTML: %w", err)
	}

	// Truncate to fit token limits, roughly 3 chars per token
	maxContentLength := cp.config.LLM.MaxTokens * 3
	if len(cleanedContent) > maxContentLength {
		cleanedContent = cleanedContent[:maxContentLength] + "..."
		cp.logger.Debug("Content truncated to fit token limits", map[string]interface{}{
			"source_url": sourceURL,
		})
	}

	prompt := cp.buildExtractionPrompt(cleanedContent, sourceURL)

	response, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaude3_7SonnetLatest,
		MaxTokens:   int64(cp.config.LLM.MaxTokens),
		Temperature: anthropic.Float(float64(cp.config.LLM.Temperature)),
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to call Claude API: %w", err)
	}

	listings, err := cp.parseClaudeResponse(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response: %w", err)
	}

	cp.logger.Info("Listing extraction completed successfully", map[string]interface{}{
		"source_url":      sourceURL,
		"listings":        len(listings),
		"processing_time": time.Since(startTime).String(),
		"provider":        "claude",
	})

	return listings, nil
}

// buildExtractionPrompt creates the prompt for Claude to extract job listings
func (cp *ClaudeProvider) buildExtractionPrompt(content, sourceURL string) string {
	return fmt.Sprintf(`You are a job search results analyzer. The content below comes from a job board search results page (%s). Extract every distinct job listing it contains and return them as a JSON array.

Each element of the array must be an object with exactly these fields:

{
  "title": "string - The job title",
  "company": "string - The company name",
  "location": "string - The job location (city, state, country, or 'Remote')",
  "url": "string - The absolute URL of the job posting; resolve relative links against the page URL",
  "remote": boolean - true when the listing is explicitly remote,
  "salary_text": "string - Salary exactly as displayed, or empty string when absent"
}

Important instructions:
1. Return ONLY the JSON array, no additional text or explanation
2. One element per listing; never merge or invent listings
3. Skip adverts, navigation items and anything that is not a job listing
4. If the content contains no job listings, return []

SEARCH RESULTS CONTENT:
%s`, sourceURL, content)
}

// parseClaudeResponse parses the Claude API response into job listings
func (cp *ClaudeProvider) parseClaudeResponse(response *anthropic.Message) ([]models.JobListing, error) {
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from Claude")
	}

	var responseText string
	for _, content := range response.Content {
		textContent := content.AsText()
		responseText = textContent.Text
		break
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in Claude response")
	}

	// Strip markdown code fences if present
	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	var listings []models.JobListing
	if err := json.Unmarshal([]byte(responseText), &listings); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response from Claude: %w, response: %s", err, responseText)
	}

	// Drop elements Claude returned without a usable URL
	filtered := listings[:0]
	for _, l := range listings {
		if l.URL != "" && l.Title != "" {
			filtered = append(filtered, l)
		}
	}

	return filtered, nil
}

// IsHealthy checks if the Claude provider is healthy and available
func (cp *ClaudeProvider) IsHealthy(ctx context.Context) error {
	if cp.config.LLM.APIKey == "" {
		return fmt.Errorf("Claude API key not configured - set LLM_API_KEY environment variable")
	}

	_, err := cp.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_7SonnetLatest,
		MaxTokens: 500,
		Messages: []anthropic.MessageParam{{
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: "Hello"},
			}},
			Role: anthropic.MessageParamRoleUser,
		}},
	})

	if err != nil {
		return fmt.Errorf("Claude API health check failed: %w", err)
	}

	return nil
}

// GetProviderName returns the name of the LLM provider
func (cp *ClaudeProvider) GetProviderName() string {
	return "claude"
}
