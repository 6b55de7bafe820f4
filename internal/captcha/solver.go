package captcha

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	api2captcha "github.com/2captcha/2captcha-go"

	"applypilot/internal/config"
	"applypilot/internal/logging"
	"applypilot/internal/logging/types"
)

// Solver is the interface for captcha solving services
type Solver interface {
	SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error)
	SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error)
	IsHealthy() bool
}

// TwoCaptchaSolver implements 2CAPTCHA service integration using the official library
type TwoCaptchaSolver struct {
	config *config.Config
	client *api2captcha.Client
	logger types.Logger
}

// NewTwoCaptchaSolver creates a new 2CAPTCHA solver instance
func NewTwoCaptchaSolver(cfg *config.Config) *TwoCaptchaSolver {
	logger := logging.GetGlobalLogger().WithField("component", "2captcha")

	if cfg.Captcha.APIKey == "" {
		logger.Warn("2CAPTCHA API key not configured - captcha solving will be disabled", map[string]interface{}{})
	}

	client := api2captcha.NewClient(cfg.Captcha.APIKey)
	client.DefaultTimeout = int(cfg.Captcha.Timeout.Seconds())
	client.RecaptchaTimeout = int(cfg.Captcha.Timeout.Seconds())
	client.PollingInterval = 5

	return &TwoCaptchaSolver{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// SolveRecaptcha solves a reCAPTCHA challenge using the 2CAPTCHA service
func (tcs *TwoCaptchaSolver) SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error) {
	if !tcs.config.Captcha.EnableAutoSolve {
		return "", fmt.Errorf("captcha auto-solve is disabled")
	}
	if tcs.config.Captcha.APIKey == "" {
		return "", fmt.Errorf("2CAPTCHA API key not configured")
	}

	startTime := time.Now()

	captcha := api2captcha.ReCaptcha{
		SiteKey: siteKey,
		Url:     pageURL,
	}

	req := captcha.ToRequest()
	code, _, err := tcs.client.Solve(req)
	if err != nil {
		tcs.logger.Error("Failed to solve reCAPTCHA", map[string]interface{}{
			"site_key": siteKey,
			"page_url": pageURL,
			"error":    err.Error(),
		})
		return "", fmt.Errorf("failed to solve reCAPTCHA: %w", err)
	}

	tcs.logger.Info("Successfully solved reCAPTCHA", map[string]interface{}{
		"page_url":     pageURL,
		"solving_time": time.Since(startTime),
	})

	return code, nil
}

// SolveTurnstile solves a Cloudflare Turnstile challenge using the 2CAPTCHA service
func (tcs *TwoCaptchaSolver) SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error) {
	if !tcs.config.Captcha.EnableAutoSolve {
		return "", fmt.Errorf("captcha auto-solve is disabled")
	}
	if tcs.config.Captcha.APIKey == "" {
		return "", fmt.Errorf("2CAPTCHA API key not configured")
	}

	startTime := time.Now()

	captcha := api2captcha.CloudflareTurnstile{
		SiteKey: siteKey,
		Url:     pageURL,
	}

	req := captcha.ToRequest()
	code, captchaID, err := tcs.client.Solve(req)
	if err != nil {
		tcs.logger.Error("Failed to solve Cloudflare Turnstile", map[string]interface{}{
			"site_key":   siteKey,
			"page_url":   pageURL,
			"captcha_id": captchaID,
			"error":      err.Error(),
		})
		return "", fmt.Errorf("failed to solve Cloudflare Turnstile: %w", err)
	}

	tcs.logger.Info("Successfully solved Cloudflare Turnstile", map[string]interface{}{
		"page_url":     pageURL,
		"solving_time": time.Since(startTime),
	})

	return code, nil
}

// IsHealthy checks if the 2CAPTCHA service is available
func (tcs *TwoCaptchaSolver) IsHealthy() bool {
	if tcs.config.Captcha.APIKey == "" {
		return false
	}

	balance, err := tcs.client.GetBalance()
	if err != nil {
		tcs.logger.Error("2CAPTCHA health check failed", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}

	return balance >= 0
}

// DetectCaptcha detects whether page content contains a captcha challenge.
// The returned key is the raw site key for reCAPTCHA, or "turnstile:<key>"
// for Cloudflare Turnstile.
func DetectCaptcha(pageContent string) (bool, string) {
	lowered := strings.ToLower(pageContent)

	if strings.Contains(lowered, "g-recaptcha") || strings.Contains(lowered, "recaptcha") {
		if siteKey := extractSiteKey(pageContent, recaptchaKeyPatterns); siteKey != "" {
			return true, siteKey
		}
	}

	if strings.Contains(lowered, "turnstile") || strings.Contains(lowered, "cf-turnstile") {
		if siteKey := extractSiteKey(pageContent, turnstileKeyPatterns); siteKey != "" {
			return true, "turnstile:" + siteKey
		}
	}

	return false, ""
}

var recaptchaKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey="([^"]+)"`),
	regexp.MustCompile(`data-sitekey='([^']+)'`),
	regexp.MustCompile(`"sitekey"\s*:\s*"([^"]+)"`),
}

var turnstileKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`cf-turnstile[^>]*data-sitekey=['"]([^'"]+)['"]`),
	regexp.MustCompile(`data-sitekey="([^"]+)"[^>]*cf-turnstile`),
	regexp.MustCompile(`turnstile[^>]*"sitekey"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`challenges\.cloudflare\.com[^"]*?(0x[0-9a-zA-Z_-]{20,})`),
}

func extractSiteKey(html string, patterns []*regexp.Regexp) string {
	for _, pattern := range patterns {
		if matches := pattern.FindStringSubmatch(html); len(matches) > 1 {
			siteKey := strings.TrimSpace(matches[1])
			if len(siteKey) > 10 {
				return siteKey
			}
		}
	}
	return ""
}
