package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"mspro-labs/emlak-ai/internal/config"
)

const gridWait = 15 * time.Second

// BrowserSource renders pages in headless Chrome for sites that build the
// listing grid with JavaScript.
type BrowserSource struct {
	site   *config.SiteConfig
	logger *slog.Logger
}

func NewBrowserSource(site *config.SiteConfig, logger *slog.Logger) *BrowserSource {
	return &BrowserSource{site: site, logger: logger}
}

func (s *BrowserSource) FetchHTML(ctx context.Context, url string) (string, error) {
	s.logger.Debug("launching headless browser")
	l := launcher.New().Headless(true).NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect to browser: %w", err)
	}
	defer browser.Close()

	page, err := stealth.Page(browser)
	if err != nil {
		return "", err
	}
	page = page.Timeout(s.site.Timeout)

	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitStable(time.Second); err != nil {
		return "", fmt.Errorf("wait stable: %w", err)
	}

	wait := s.site.Selectors.Wait
	if wait == "" {
		wait = s.site.Selectors.Listing
	}
	// An empty results page never shows the grid; treat a timeout here as
	// "no listings" and let the parser return nothing.
	if _, err := page.Timeout(gridWait).Element(wait); err != nil {
		s.logger.Warn("listing grid did not appear", "selector", wait, "error", err)
	}

	return page.HTML()
}
