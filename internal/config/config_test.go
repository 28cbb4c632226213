package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSite = `
listing_url: "https://ilan.example.com/satilik-daire?page=%d"
selectors:
  listing: "div.listing-card"
  title: "h3.title"
  price: "span.price"
  location: "span.location"
  link: "a"
regions:
  İstanbul: [Kadıköy, Beşiktaş]
`

func TestParseSiteConfigDefaults(t *testing.T) {
	cfg, err := ParseSiteConfig([]byte(sampleSite))
	require.NoError(t, err)

	assert.Equal(t, RenderHTTP, cfg.Render)
	assert.Equal(t, 1, cfg.Pages)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Equal(t, []string{"Kadıköy", "Beşiktaş"}, cfg.Regions["İstanbul"])
	assert.Equal(t, "https://ilan.example.com/satilik-daire?page=2", cfg.PageURL(2))
}

func TestParseSiteConfigDuration(t *testing.T) {
	cfg, err := ParseSiteConfig([]byte(sampleSite + "timeout: 5s\nrender: browser\n"))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, RenderBrowser, cfg.Render)
}

func TestParseSiteConfigRejectsMissingSelectors(t *testing.T) {
	_, err := ParseSiteConfig([]byte(`listing_url: "https://x"`))
	assert.Error(t, err)
}

func TestParseSiteConfigRejectsUnknownRender(t *testing.T) {
	_, err := ParseSiteConfig([]byte(sampleSite + "render: carrier-pigeon\n"))
	assert.ErrorContains(t, err, "render must be")
}

func TestPageURLWithoutVerb(t *testing.T) {
	cfg := &SiteConfig{ListingURL: "https://ilan.example.com/list"}
	assert.Equal(t, "https://ilan.example.com/list", cfg.PageURL(3))
}

func TestGetAppConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("REFRESH_AT", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")

	cfg, err := GetAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "03:00", cfg.RefreshAt)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestGetAppConfigPostgresNeedsDSN(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := GetAppConfig()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestGetAppConfigPostgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/emlak?sslmode=disable")

	cfg, err := GetAppConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/emlak?sslmode=disable", cfg.DBPath)
}

func TestGetAppConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	_, err := GetAppConfig()
	assert.Error(t, err)
}
