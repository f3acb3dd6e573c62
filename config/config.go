package config

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Browser BrowserConfig
	Scraper ScraperConfig
	LLM     LLMConfig
	Cache   CacheConfig
	Log     LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls how pages are rendered.
type BrowserConfig struct {
	// Backend selects the page backend: "rod" (headless Chromium) or
	// "http" (plain fetch + static DOM, no JavaScript).
	Backend string // default: "rod"

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all requests.
	Proxy string

	// Stealth injects the anti-detection script into every new page.
	Stealth bool // default: true

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockTrackers fails requests to known ad and analytics hosts.
	BlockTrackers bool // default: true

	// UserAgent overrides the User-Agent header of the http backend.
	UserAgent string

	// NavigationTimeout is the max time for one page load.
	NavigationTimeout time.Duration // default: 30s

	// SettleTimeout bounds the best-effort wait for the DOM to stop changing.
	SettleTimeout time.Duration // default: 3s
}

// ScraperConfig controls the extraction core.
type ScraperConfig struct {
	// BaseOrigin is the listings site origin that detail hrefs resolve against.
	BaseOrigin string // default: "https://www.bayut.com"

	// DefaultSearchURL is used when a caller supplies no search URL.
	DefaultSearchURL string

	// MaxProperties is how many detail pages a scrape visits by default.
	MaxProperties int // default: 5

	// MaxPropertiesLimit caps the max_properties accepted from clients.
	MaxPropertiesLimit int // default: 25

	// RequestTimeout bounds one scrape request end to end.
	RequestTimeout time.Duration // default: 180s

	// DetailPathSegment is the substring every detail href must contain.
	DetailPathSegment string // default: "property/details"

	// Locator overrides. Empty means the built-in default.
	LinkLocator        string
	PriceLocator       string
	LocationLocator    string
	DescriptionLocator string
}

// LLMConfig controls the optional query/summarize layer.
type LLMConfig struct {
	// APIKey enables the LLM endpoints when set.
	APIKey  string
	Model   string        // default: "gpt-4o-mini"
	BaseURL string        // default: "https://api.openai.com/v1"
	Timeout time.Duration // default: 60s
}

// Enabled reports whether an API key is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// CacheConfig controls the scrape result cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached result lists.
	MaxEntries int // default: 200
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// NewLogger builds the slog logger described by c, writing to w.
// Unknown levels fall back to info and unknown formats to JSON.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host: envOr("PROPSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("PROPSCOUT_PORT", 8080),
			Mode: envOr("PROPSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Backend:    envOr("PROPSCOUT_BACKEND", "rod"),
			Headless:   envBoolOr("PROPSCOUT_HEADLESS", true),
			NoSandbox:  envBoolOr("PROPSCOUT_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PROPSCOUT_BROWSER_BIN"),
			Proxy:      os.Getenv("PROPSCOUT_PROXY"),
			Stealth:    envBoolOr("PROPSCOUT_STEALTH", true),
			BlockedResourceTypes: envSliceOr("PROPSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockTrackers:     envBoolOr("PROPSCOUT_BLOCK_TRACKERS", true),
			UserAgent:         os.Getenv("PROPSCOUT_USER_AGENT"),
			NavigationTimeout: envDurationOr("PROPSCOUT_NAV_TIMEOUT", 30*time.Second),
			SettleTimeout:     envDurationOr("PROPSCOUT_SETTLE_TIMEOUT", 3*time.Second),
		},
		Scraper: ScraperConfig{
			BaseOrigin:         envOr("PROPSCOUT_BASE_ORIGIN", "https://www.bayut.com"),
			DefaultSearchURL:   envOr("PROPSCOUT_DEFAULT_SEARCH_URL", "https://www.bayut.com/to-rent/villas/uae/?rent_frequency=monthly&price_min=5000&price_max=6000"),
			MaxProperties:      envIntOr("PROPSCOUT_MAX_PROPERTIES", 5),
			MaxPropertiesLimit: envIntOr("PROPSCOUT_MAX_PROPERTIES_LIMIT", 25),
			RequestTimeout:     envDurationOr("PROPSCOUT_REQUEST_TIMEOUT", 180*time.Second),
			DetailPathSegment:  envOr("PROPSCOUT_DETAIL_PATH_SEGMENT", "property/details"),
			LinkLocator:        os.Getenv("PROPSCOUT_LINK_LOCATOR"),
			PriceLocator:       os.Getenv("PROPSCOUT_PRICE_LOCATOR"),
			LocationLocator:    os.Getenv("PROPSCOUT_LOCATION_LOCATOR"),
			DescriptionLocator: os.Getenv("PROPSCOUT_DESCRIPTION_LOCATOR"),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   envOr("PROPSCOUT_LLM_MODEL", "gpt-4o-mini"),
			BaseURL: envOr("PROPSCOUT_LLM_BASE_URL", "https://api.openai.com/v1"),
			Timeout: envDurationOr("PROPSCOUT_LLM_TIMEOUT", 60*time.Second),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PROPSCOUT_CACHE_MAX_ENTRIES", 200),
		},
		Log: LogConfig{
			Level:  envOr("PROPSCOUT_LOG_LEVEL", "info"),
			Format: envOr("PROPSCOUT_LOG_FORMAT", "json"),
		},
	}
}

// Validate checks the scraper settings that would otherwise fail on the
// first request. Locator syntax is checked by the scraper package.
func (c ScraperConfig) Validate() error {
	u, err := url.Parse(c.BaseOrigin)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base origin %q is not an absolute URL", c.BaseOrigin)
	}
	if c.MaxProperties < 1 {
		return fmt.Errorf("max properties must be at least 1, got %d", c.MaxProperties)
	}
	if c.MaxPropertiesLimit < c.MaxProperties {
		return fmt.Errorf("max properties limit %d is below the default %d", c.MaxPropertiesLimit, c.MaxProperties)
	}
	if c.DetailPathSegment == "" {
		return fmt.Errorf("detail path segment must not be empty")
	}
	return nil
}

// Validate checks the browser settings.
func (c BrowserConfig) Validate() error {
	switch c.Backend {
	case "rod", "http":
	default:
		return fmt.Errorf("unknown browser backend %q (want rod or http)", c.Backend)
	}
	if c.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation timeout must be positive")
	}
	return nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
