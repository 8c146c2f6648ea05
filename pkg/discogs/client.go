// Package discogs is the marketplace API client: it fetches a user's want
// list and the marketplace listings for a catalog item.
//
// Want-list pages are gated through the shared limiter and retried on server,
// network and 429 failures. Listing lookups are a single attempt; throttling
// is reported as market.ErrThrottled so the caller owns the retry policy.
package discogs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/3faceees/discogs-backend/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public marketplace API.
const DefaultBaseURL = "https://api.discogs.com"

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 8 << 20

// Prometheus metrics for marketplace client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_discogs_requests_total",
		Help: "Total marketplace API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wantlist_discogs_request_duration_seconds",
		Help:    "Marketplace API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_discogs_errors_total",
		Help: "Total marketplace API errors by class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_discogs_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wantlist_discogs_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_discogs_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// Endpoint labels.
const (
	endpointWants    = "wants"
	endpointListings = "listings"
)

// Limiter gates outbound requests.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the marketplace API.
	BaseURL string

	// Token is the personal access token. Empty means anonymous access,
	// which the upstream limits far more tightly.
	Token string

	// User-Agent header (REQUIRED by the upstream)
	// Format: "AppName/Version +https://contact"
	UserAgent string

	// Timeout per HTTP request.
	Timeout time.Duration

	// Limiter gates want-list page requests. Optional.
	Limiter Limiter

	// Tracker receives the upstream rate limit headers. Optional.
	Tracker *ratelimit.Tracker

	// PerPage is the page size for want-list and listing requests.
	PerPage int

	// Currency requested for listing prices.
	Currency string

	// Retry configures want-list page retries.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent, token string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		Token:     token,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		PerPage:   100,
		Currency:  "USD",
		Retry:     DefaultRetryConfig(),
	}
}

// Client talks to the marketplace API.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new marketplace client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if cfg.PerPage < 1 || cfg.PerPage > 100 {
		return nil, fmt.Errorf("per_page must be between 1 and 100 (got %d)", cfg.PerPage)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry config: %w", err)
	}

	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.Currency = strings.ToUpper(cfg.Currency)

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     log.With().Str("component", "discogs-client").Logger(),
	}, nil
}

// Authenticated reports whether requests carry a token.
func (c *Client) Authenticated() bool {
	return c.config.Token != ""
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// get performs one GET and returns the body of a 200 response. Any other
// outcome is an *APIError.
func (c *Client) get(ctx context.Context, endpoint, rawURL string) ([]byte, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.config.Token)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("url", req.URL.Path).
		Msg("Executing marketplace request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &APIError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        errors.Join(err, market.ErrUnavailable),
		}
	}
	defer resp.Body.Close()

	if c.config.Tracker != nil {
		if err := c.config.Tracker.UpdateFromHeaders(resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

		errClass := classifyStatus(resp.StatusCode)
		if errClass == "" {
			errClass = ErrorClassClient
		}
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Marketplace request error")

		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
			Err:        signalFor(resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read body",
			Err:        errors.Join(err, market.ErrUnavailable),
		}
	}
	return body, nil
}
