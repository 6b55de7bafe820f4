package browser

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"applypilot/internal/config"
	"applypilot/internal/logging"
	"applypilot/internal/logging/types"
)

// Engine launches browsers for board navigation scripts. Every Acquire
// returns a fresh, isolated Instance scoped to one search or apply call;
// there is no shared browser and no pool, so a crashed navigation never
// poisons another call.
type Engine struct {
	config *config.Config
	logger types.Logger
}

// Instance is one launched browser with a single stealth page. The caller
// owns it for the duration of one navigation script and must Release it on
// every exit path.
type Instance struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	logger   types.Logger
}

// NewEngine creates a browser engine from configuration
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		config: cfg,
		logger: logging.GetGlobalLogger().WithField("component", "browser"),
	}
}

// Acquire launches a browser and opens a stealth page
func (e *Engine) Acquire(ctx context.Context) (*Instance, error) {
	l := launcher.New().
		Headless(e.config.Browser.HeadlessMode).
		NoSandbox(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-web-security").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-gpu").          // prevents GPU context failures in Docker
		Set("disable-dev-shm-usage") // overcomes Docker shared memory limitations

	if chromePath := systemChromePath(); chromePath != "" {
		l = l.Bin(chromePath)
	}

	if e.config.Browser.UserAgent != "" {
		l = l.Set("user-agent", e.config.Browser.UserAgent)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := e.newPage(browser)
	if err != nil {
		browser.MustClose()
		l.Cleanup()
		return nil, err
	}

	e.logger.Debug("Browser instance acquired", map[string]interface{}{
		"headless": e.config.Browser.HeadlessMode,
	})

	return &Instance{
		browser:  browser,
		page:     page,
		launcher: l,
		logger:   e.logger,
	}, nil
}

// newPage opens a page with stealth mode and human-like defaults
func (e *Engine) newPage(browser *rod.Browser) (*rod.Page, error) {
	var page *rod.Page
	var err error

	if e.config.Browser.StealthMode {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		e.logger.Warn("Failed to set viewport", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if e.config.Browser.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent: e.config.Browser.UserAgent,
		}); err != nil {
			e.logger.Warn("Failed to set user agent", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	for name, value := range headers {
		if _, err := page.SetExtraHeaders([]string{name, value}); err != nil {
			e.logger.Debug("Failed to set header", map[string]interface{}{
				"error":  err.Error(),
				"header": name,
			})
		}
	}

	return page, nil
}

// Navigate navigates the page to the specified URL with timeout
func (i *Instance) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := rod.Try(func() {
		i.page.Context(navCtx).MustNavigate(url).MustWaitLoad()
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	i.logger.Debug("Navigated to URL", map[string]interface{}{"url": url})
	return nil
}

// HTML returns the full HTML content of the current page
func (i *Instance) HTML() (string, error) {
	html, err := i.page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to get page HTML: %w", err)
	}
	return html, nil
}

// Page exposes the underlying page for element interaction in navigation scripts
func (i *Instance) Page() *rod.Page {
	return i.page
}

// Release closes the page, browser and launcher. Safe to defer immediately
// after Acquire; never leaves a browser process behind.
func (i *Instance) Release() {
	if i.page != nil {
		_ = rod.Try(func() { i.page.MustClose() })
	}
	if i.browser != nil {
		_ = rod.Try(func() { i.browser.MustClose() })
	}
	if i.launcher != nil {
		i.launcher.Cleanup()
	}
	i.logger.Debug("Browser instance released")
}

// systemChromePath locates an installed Chrome/Chromium so rod doesn't
// download its own
func systemChromePath() string {
	candidates := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
