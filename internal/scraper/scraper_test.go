package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mspro-labs/emlak-ai/internal/config"
)

var testSelectors = config.Selectors{
	Listing:  "div.listing-card",
	Title:    "h3.title",
	Price:    "span.price",
	Location: "span.location",
	Link:     "a.detail",
}

// Sample markup simulating the classifieds grid. The second card has no
// price and must be skipped.
const sampleHTML = `
<html>
<body>
  <section class="results">
    <div class="listing-card">
      <a class="detail" href="https://ilan.example.com/ilan/1"><h3 class="title"> Moda'da 3+1 Daire </h3></a>
      <span class="price">2.000.000 TL</span>
      <span class="location">İstanbul/Kadıköy</span>
    </div>
    <div class="listing-card">
      <a class="detail" href="https://ilan.example.com/ilan/2"><h3 class="title">Fiyatı sorunuz</h3></a>
      <span class="location">İstanbul/Üsküdar</span>
    </div>
    <div class="listing-card">
      <h3 class="title">Etiler 2+1</h3>
      <span class="price">4.100.000 TL</span>
      <span class="location">İstanbul/Beşiktaş</span>
    </div>
  </section>
</body>
</html>
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite(url string) *config.SiteConfig {
	return &config.SiteConfig{
		ListingURL:    url + "/satilik-daire?page=%d",
		UserAgent:     "emlak-test-agent",
		Render:        config.RenderHTTP,
		Pages:         1,
		RatePerSecond: 1000,
		Timeout:       5 * time.Second,
		Selectors:     testSelectors,
	}
}

func TestParseHTML(t *testing.T) {
	items, skipped, err := ParseHTML(sampleHTML, testSelectors)
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, 1, skipped)

	assert.Equal(t, "Moda'da 3+1 Daire", items[0].Title)
	assert.Equal(t, "2.000.000 TL", items[0].PriceText)
	assert.Equal(t, "İstanbul/Kadıköy", items[0].LocationText)
	assert.Equal(t, "https://ilan.example.com/ilan/1", items[0].URL)

	assert.Equal(t, "Etiler 2+1", items[1].Title)
	assert.Empty(t, items[1].URL)
}

func TestParseHTMLNoMatches(t *testing.T) {
	items, skipped, err := ParseHTML("<html><body><p>Sonuç bulunamadı</p></body></html>", testSelectors)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Zero(t, skipped)
}

func TestFetchSendsUserAgentAndParses(t *testing.T) {
	var gotUA, gotPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotPage = r.URL.Query().Get("page")
		_, _ = io.WriteString(w, sampleHTML)
	}))
	defer srv.Close()

	f := NewFetcher(testSite(srv.URL), discardLogger())
	items, err := f.Fetch(context.Background(), 0)
	require.NoError(t, err)

	assert.Len(t, items, 2)
	assert.Equal(t, "emlak-test-agent", gotUA)
	assert.Equal(t, "1", gotPage)
}

func TestFetchNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(testSite(srv.URL), discardLogger())
	_, err := f.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatus))
}

func TestFetchNetworkFailureIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewFetcher(testSite(url), discardLogger())
	_, err := f.Fetch(context.Background(), 1)
	assert.Error(t, err)
}

type stubSource struct {
	html string
	err  error
	urls []string
}

func (s *stubSource) FetchHTML(_ context.Context, url string) (string, error) {
	s.urls = append(s.urls, url)
	return s.html, s.err
}

func TestFetchUsesInjectedSource(t *testing.T) {
	src := &stubSource{html: sampleHTML}
	f := NewFetcher(testSite("https://ilan.example.com"), discardLogger(), WithSource(src))

	items, err := f.Fetch(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, []string{"https://ilan.example.com/satilik-daire?page=3"}, src.urls)
}

func TestFetchCancelledContext(t *testing.T) {
	site := testSite("https://ilan.example.com")
	site.RatePerSecond = 0.001
	f := NewFetcher(site, discardLogger(), WithSource(&stubSource{html: sampleHTML}))

	// The first call consumes the only token.
	_, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, 1)
	assert.Error(t, err)
}

func TestFetchZeroRateDoesNotThrottle(t *testing.T) {
	site := testSite("https://ilan.example.com")
	site.RatePerSecond = 0
	src := &stubSource{html: sampleHTML}
	f := NewFetcher(site, discardLogger(), WithSource(src))

	for page := 1; page <= 3; page++ {
		_, err := f.Fetch(context.Background(), page)
		require.NoError(t, err, "page %d", page)
	}
	assert.Len(t, src.urls, 3)
}
