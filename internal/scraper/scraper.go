package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"mspro-labs/emlak-ai/internal/config"
	"mspro-labs/emlak-ai/internal/models"
)

// ErrStatus is returned when the listings site answers with a non-2xx status.
var ErrStatus = errors.New("unexpected status code")

// PageSource returns the rendered HTML of a URL.
type PageSource interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Fetcher downloads one listings page and extracts raw listings from it.
type Fetcher struct {
	site    *config.SiteConfig
	source  PageSource
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Option customises a Fetcher.
type Option func(*Fetcher)

// WithSource replaces the page source chosen from the site config.
func WithSource(src PageSource) Option {
	return func(f *Fetcher) { f.source = src }
}

// NewFetcher builds a Fetcher for the site. The page source is plain HTTP
// unless the site config asks for a headless browser. A non-positive
// rate_per_second disables pacing.
func NewFetcher(site *config.SiteConfig, logger *slog.Logger, opts ...Option) *Fetcher {
	limit := rate.Limit(site.RatePerSecond)
	if site.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	f := &Fetcher{
		site:    site,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.source == nil {
		if site.Render == config.RenderBrowser {
			f.source = NewBrowserSource(site, logger)
		} else {
			f.source = NewHTTPSource(site, nil)
		}
	}
	return f
}

// Fetch downloads page n of the listings and parses it. A page with no
// matching listings yields an empty slice and a nil error.
func (f *Fetcher) Fetch(ctx context.Context, page int) ([]models.RawListing, error) {
	if page < 1 {
		page = 1
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := f.site.PageURL(page)
	f.logger.Info("fetching listings page", "url", url, "page", page)

	html, err := f.source.FetchHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	items, skipped, err := ParseHTML(html, f.site.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}
	if skipped > 0 {
		f.logger.Debug("skipped incomplete listings", "page", page, "skipped", skipped)
	}
	return items, nil
}

// ParseHTML extracts listings using the configured selectors. Listings that
// miss a title, price or location are skipped and counted.
func ParseHTML(html string, sel config.Selectors) ([]models.RawListing, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, err
	}

	items := []models.RawListing{}
	skipped := 0

	doc.Find(sel.Listing).Each(func(_ int, s *goquery.Selection) {
		item := models.RawListing{
			Title:        strings.TrimSpace(s.Find(sel.Title).First().Text()),
			PriceText:    strings.TrimSpace(s.Find(sel.Price).First().Text()),
			LocationText: strings.TrimSpace(s.Find(sel.Location).First().Text()),
		}
		if sel.Link != "" {
			item.URL, _ = s.Find(sel.Link).First().Attr("href")
		}

		if item.Title == "" || item.PriceText == "" || item.LocationText == "" {
			skipped++
			return
		}
		items = append(items, item)
	})

	return items, skipped, nil
}

// HTTPSource fetches pages with a plain GET.
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

// NewHTTPSource creates an HTTPSource. A nil client gets one with the site timeout.
func NewHTTPSource(site *config.SiteConfig, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: site.Timeout}
	}
	return &HTTPSource{client: client, userAgent: site.UserAgent}
}

func (s *HTTPSource) FetchHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.userAgent)

	res, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrStatus, res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
