// Package config loads the analyzer configuration from the environment and
// an optional .env file, and maps it onto the library configurations.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/3faceees/discogs-backend/pkg/aggregate"
	"github.com/3faceees/discogs-backend/pkg/analysis"
	"github.com/3faceees/discogs-backend/pkg/cache"
	"github.com/3faceees/discogs-backend/pkg/discogs"
	"github.com/3faceees/discogs-backend/pkg/listing"
	"github.com/3faceees/discogs-backend/pkg/logging"
	"github.com/3faceees/discogs-backend/pkg/scheduler"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Upstream request limits per minute.
const (
	AuthenticatedRatePerMinute = 1000
	AnonymousRatePerMinute     = 60
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	BaseURL            string
	Token              string
	UserAgent          string
	RateLimitPerMinute int

	BatchSize          int
	BatchDelay         time.Duration
	Concurrency        int
	MaxItems           int
	ThrottleBackoff    time.Duration
	ThrottleMaxRetries int
	RunTimeout         time.Duration

	ShippingPerOrder decimal.Decimal
	Currency         string
	TopSellers       int

	CacheTTL  time.Duration
	CacheSize int
	RedisURL  string

	SessionCapacity int
	Port            string
	LogLevel        logging.LogLevel
	LogPretty       bool

	// TrustProxy takes client addresses from X-Forwarded-For/X-Real-IP.
	// Only enable it behind a proxy that sets those headers.
	TrustProxy bool
}

// Load reads envFile (".env" when empty; a missing default file is not an
// error) and returns the validated configuration.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	p := &parser{}
	token := strings.TrimSpace(os.Getenv("DISCOGS_TOKEN"))
	authenticated := token != ""

	rate := AnonymousRatePerMinute
	if authenticated {
		rate = AuthenticatedRatePerMinute
	}
	tier := scheduler.ConfigFor(authenticated)
	fetch := listing.DefaultConfig()
	agg := aggregate.DefaultConfig()
	cached := cache.DefaultConfig()

	cfg := &Config{
		BaseURL:            getEnv("DISCOGS_BASE_URL", discogs.DefaultBaseURL),
		Token:              token,
		UserAgent:          getEnv("USER_AGENT", "wantlist-analyzer/0.1.0"),
		RateLimitPerMinute: p.int("RATE_LIMIT_PER_MINUTE", rate),

		BatchSize:          p.int("BATCH_SIZE", tier.BatchSize),
		BatchDelay:         p.duration("BATCH_DELAY", tier.BatchDelay),
		Concurrency:        p.int("CONCURRENCY", 0),
		MaxItems:           p.int("MAX_ITEMS", 0),
		ThrottleBackoff:    p.duration("THROTTLE_BACKOFF", fetch.ThrottleBackoff),
		ThrottleMaxRetries: p.int("THROTTLE_MAX_RETRIES", fetch.MaxThrottleRetries),
		RunTimeout:         p.duration("RUN_TIMEOUT", analysis.DefaultConfig().RunTimeout),

		ShippingPerOrder: p.decimal("SHIPPING_PER_ORDER", agg.ShippingPerOrder),
		Currency:         strings.ToUpper(getEnv("CURRENCY", agg.Currency)),
		TopSellers:       p.int("TOP_SELLERS", agg.TopN),

		CacheTTL:  p.duration("CACHE_TTL", cached.TTL),
		CacheSize: p.int("CACHE_SIZE", cached.Size),
		RedisURL:  getEnv("REDIS_URL", ""),

		SessionCapacity: p.int("SESSION_CAPACITY", 256),
		Port:            getEnv("PORT", "8080"),
		LogPretty:       p.bool("LOG_PRETTY", false),
		TrustProxy:      p.bool("TRUST_PROXY", false),
	}

	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	cfg.LogLevel = level

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Authenticated reports whether a token is configured.
func (c *Config) Authenticated() bool {
	return c.Token != ""
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	var errs []error
	if c.UserAgent == "" {
		errs = append(errs, errors.New("USER_AGENT is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("DISCOGS_BASE_URL is required"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0 (got %d)", c.RateLimitPerMinute))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be > 0 (got %d)", c.BatchSize))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, fmt.Errorf("BATCH_DELAY cannot be negative (got %s)", c.BatchDelay))
	}
	if c.Concurrency < 0 || c.Concurrency > 64 {
		errs = append(errs, fmt.Errorf("CONCURRENCY must be between 0 and 64 (got %d)", c.Concurrency))
	}
	if c.MaxItems < 0 {
		errs = append(errs, fmt.Errorf("MAX_ITEMS cannot be negative (got %d)", c.MaxItems))
	}
	if c.ThrottleBackoff < 0 {
		errs = append(errs, fmt.Errorf("THROTTLE_BACKOFF cannot be negative (got %s)", c.ThrottleBackoff))
	}
	if c.ThrottleMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("THROTTLE_MAX_RETRIES cannot be negative (got %d)", c.ThrottleMaxRetries))
	}
	if c.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("RUN_TIMEOUT cannot be negative (got %s)", c.RunTimeout))
	}
	if c.ShippingPerOrder.IsNegative() {
		errs = append(errs, fmt.Errorf("SHIPPING_PER_ORDER cannot be negative (got %s)", c.ShippingPerOrder))
	}
	if len(c.Currency) != 3 {
		errs = append(errs, fmt.Errorf("CURRENCY must be a three-letter code (got %q)", c.Currency))
	}
	if c.TopSellers < 0 {
		errs = append(errs, fmt.Errorf("TOP_SELLERS cannot be negative (got %d)", c.TopSellers))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be > 0 (got %s)", c.CacheTTL))
	}
	if c.CacheSize <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_SIZE must be > 0 (got %d)", c.CacheSize))
	}
	if c.SessionCapacity <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_CAPACITY must be > 0 (got %d)", c.SessionCapacity))
	}
	return errors.Join(errs...)
}

// Discogs returns the marketplace client configuration. Limiter and
// Tracker are wired by the caller.
func (c *Config) Discogs() discogs.Config {
	cfg := discogs.DefaultConfig(c.UserAgent, c.Token)
	cfg.BaseURL = c.BaseURL
	cfg.Currency = c.Currency
	return cfg
}

// Scheduler returns the batch scheduler configuration.
func (c *Config) Scheduler() scheduler.Config {
	cfg := scheduler.ConfigFor(c.Authenticated())
	cfg.BatchSize = c.BatchSize
	cfg.BatchDelay = c.BatchDelay
	cfg.Concurrency = c.Concurrency
	cfg.MaxItems = c.MaxItems
	return cfg
}

// Fetcher returns the listing fetcher configuration. The cache is wired by
// the caller.
func (c *Config) Fetcher() listing.Config {
	cfg := listing.DefaultConfig()
	cfg.ThrottleBackoff = c.ThrottleBackoff
	cfg.MaxThrottleRetries = c.ThrottleMaxRetries
	return cfg
}

// Cache returns the listing cache configuration.
func (c *Config) Cache() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.TTL = c.CacheTTL
	cfg.Size = c.CacheSize
	cfg.Currency = c.Currency
	return cfg
}

// Engine returns the analysis engine configuration.
func (c *Config) Engine() analysis.Config {
	return analysis.Config{
		Aggregate: aggregate.Config{
			ShippingPerOrder: c.ShippingPerOrder,
			Currency:         c.Currency,
			TopN:             c.TopSellers,
		},
		RunTimeout: c.RunTimeout,
	}
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Pretty = c.LogPretty
	return cfg
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// parser collects malformed values instead of silently using defaults.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, val))
		return fallback
	}
	return n
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, val))
		return fallback
	}
	return d
}

func (p *parser) decimal(key string, fallback decimal.Decimal) decimal.Decimal {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid amount %q", key, val))
		return fallback
	}
	return d
}

func (p *parser) bool(key string, fallback bool) bool {
	val := getEnv(key, "")
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, val))
		return fallback
	}
	return b
}
