package app

import (
	"errors"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/marvenixx/pos-console/internal/catalog"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	APIBaseURL string        `envconfig:"API_BASE_URL" default:"http://127.0.0.1:8000"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"12h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	GotenbergURL string `envconfig:"GOTENBERG_URL" default:"http://127.0.0.1:3000"`

	CacheProductsTTL  time.Duration `envconfig:"CACHE_PRODUCTS_TTL" default:"60s"`
	CacheLocationsTTL time.Duration `envconfig:"CACHE_LOCATIONS_TTL" default:"60s"`
	CacheBrandingTTL  time.Duration `envconfig:"CACHE_BRANDING_TTL" default:"30s"`
	CacheHistoryTTL   time.Duration `envconfig:"CACHE_HISTORY_TTL" default:"60s"`

	DefaultLocationID int64  `envconfig:"DEFAULT_LOCATION_ID" default:"0"`
	CurrencySymbol    string `envconfig:"CURRENCY_SYMBOL" default:"₵"`

	// StaffUsers is "username:full name:role:bcrypt hash" entries separated by ';'.
	StaffUsers string `envconfig:"STAFF_USERS"`

	DocumentArchiveDir     string `envconfig:"DOCUMENT_ARCHIVE_DIR" default:"var/documents"`
	DocumentArchiveEnabled bool   `envconfig:"DOCUMENT_ARCHIVE_ENABLED" default:"false"`
	SummaryCron            string `envconfig:"SUMMARY_CRON" default:"0 21 * * *"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("api base url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// CacheTTLs maps the cache settings onto the catalog.
func (c *Config) CacheTTLs() catalog.TTLs {
	return catalog.TTLs{
		Products:  c.CacheProductsTTL,
		Locations: c.CacheLocationsTTL,
		Branding:  c.CacheBrandingTTL,
		History:   c.CacheHistoryTTL,
	}
}

// CheckoutLockTTL outlives the slowest backend call a checkout can make.
func (c *Config) CheckoutLockTTL() time.Duration {
	return c.APITimeout + 15*time.Second
}
