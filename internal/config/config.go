package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds infrastructure config from standard env vars
type AppConfig struct {
	DBDriver     string
	DBPath       string // sqlite file, or postgres DSN when DBDriver is "postgres"
	ConfigPath   string // Path to the YAML site config file
	CSVPath      string
	MapPath      string
	GeometryPath string
	TrainingCSV  string // empty means the built-in sample

	HTTPAddr        string
	RefreshAt       string
	Timezone        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// SiteConfig holds all target-site specific settings (from YAML)
type SiteConfig struct {
	ListingURL    string              `yaml:"listing_url"` // fmt template taking the page number
	UserAgent     string              `yaml:"user_agent"`
	Render        string              `yaml:"render"` // "http" or "browser"
	Pages         int                 `yaml:"pages"`
	RatePerSecond float64             `yaml:"rate_per_second"`
	Timeout       time.Duration       `yaml:"timeout"`
	Selectors     Selectors           `yaml:"selectors"`
	Regions       map[string][]string `yaml:"regions"`
}

type Selectors struct {
	Listing  string `yaml:"listing"`
	Title    string `yaml:"title"`
	Price    string `yaml:"price"`
	Location string `yaml:"location"`
	Link     string `yaml:"link"`
	Wait     string `yaml:"wait"` // browser mode only
}

const (
	RenderHTTP    = "http"
	RenderBrowser = "browser"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// GetAppConfig reads infrastructure settings from environment variables.
// A .env file in the working directory is loaded first when present.
func GetAppConfig() (AppConfig, error) {
	_ = godotenv.Load()

	shutdown, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"))
	if err != nil || shutdown <= 0 {
		return AppConfig{}, errors.New("invalid SHUTDOWN_TIMEOUT")
	}

	cfg := AppConfig{
		DBDriver:        getEnv("DB_DRIVER", "sqlite3"),
		DBPath:          getEnv("DB_PATH", "./local-data/emlak.db"),
		ConfigPath:      getEnv("CONFIG_PATH", "config.yaml"),
		CSVPath:         getEnv("CSV_OUTPUT_PATH", "./local-data/listings.csv"),
		MapPath:         getEnv("MAP_OUTPUT_PATH", "./local-data/district_prices.png"),
		GeometryPath:    getEnv("GEOMETRY_PATH", "./data/districts.geojson"),
		TrainingCSV:     os.Getenv("TRAINING_CSV"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		RefreshAt:       getEnv("REFRESH_AT", "03:00"),
		Timezone:        getEnv("TIMEZONE", "Europe/Istanbul"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdown,
	}

	if cfg.DBDriver == "postgres" {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return AppConfig{}, errors.New("DB_DRIVER is postgres but DATABASE_URL is not set")
		}
		cfg.DBPath = dsn
	} else if cfg.DBDriver != "sqlite3" {
		return AppConfig{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

// Location resolves the configured timezone.
func (c AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// LoadSiteConfig reads the YAML file to configure the scraper and the form.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file at '%s': %w", path, err)
	}
	return ParseSiteConfig(data)
}

// ParseSiteConfig decodes a YAML document and fills defaults.
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	var cfg SiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *SiteConfig) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.Render == "" {
		c.Render = RenderHTTP
	}
	if c.Pages <= 0 {
		c.Pages = 1
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 0.5
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *SiteConfig) validate() error {
	if c.ListingURL == "" {
		return errors.New("listing_url is required")
	}
	if c.Render != RenderHTTP && c.Render != RenderBrowser {
		return fmt.Errorf("render must be %q or %q, got %q", RenderHTTP, RenderBrowser, c.Render)
	}
	s := c.Selectors
	if s.Listing == "" || s.Title == "" || s.Price == "" || s.Location == "" {
		return errors.New("selectors.listing, title, price and location are required")
	}
	return nil
}

// PageURL fills the listing URL template with a page number.
// Templates without a verb are returned unchanged.
func (c *SiteConfig) PageURL(page int) string {
	if !strings.Contains(c.ListingURL, "%d") {
		return c.ListingURL
	}
	return fmt.Sprintf(c.ListingURL, page)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
