// Package listing fetches, normalizes and filters the marketplace listings
// of one want-list item.
//
// Fetch never fails as a whole: every outcome, including cancellation and
// upstream errors, is reported in the Result so one bad item never aborts a
// run.
package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3faceees/discogs-backend/pkg/cache"
	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/3faceees/discogs-backend/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for listing fetches.
var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_listing_fetch_total",
		Help: "Total listing fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wantlist_listing_fetch_duration_seconds",
		Help:    "Listing fetch duration including limiter waits and backoff",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 60},
	})

	throttleRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_listing_throttle_retries_total",
		Help: "Total listing requests retried after the upstream throttled them",
	})

	listingsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_listing_dropped_total",
		Help: "Total raw listings dropped during normalization",
	})
)

// Outcome classifies how a fetch ended.
type Outcome string

const (
	// OutcomeOK means at least one listing passed the filters.
	OutcomeOK Outcome = "ok"

	// OutcomeNoListings means the item was fetched but nothing passed.
	OutcomeNoListings Outcome = "no_listings"

	// OutcomeNotFound means the source does not know the catalog item.
	OutcomeNotFound Outcome = "not_found"

	// OutcomeThrottled means the throttle retry budget ran out.
	OutcomeThrottled Outcome = "throttled"

	// OutcomeFailed means a non-throttle source error.
	OutcomeFailed Outcome = "failed"

	// OutcomeCancelled means the context ended first.
	OutcomeCancelled Outcome = "cancelled"
)

// Failed reports whether the item could not be looked up.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeNotFound, OutcomeThrottled, OutcomeFailed, OutcomeCancelled:
		return true
	default:
		return false
	}
}

// Source looks up the raw listings of one catalog item in a single request.
// Throttling must be reported as an error wrapping market.ErrThrottled.
type Source interface {
	GetListings(ctx context.Context, catalogID int64) ([]market.RawListing, error)
}

// Limiter gates every network attempt.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// Cache stores raw listings between runs. Get returns cache.ErrCacheMiss for
// absent entries.
type Cache interface {
	Get(ctx context.Context, catalogID int64) ([]market.RawListing, error)
	Set(ctx context.Context, catalogID int64, raw []market.RawListing) error
}

// Config holds the fetcher configuration.
type Config struct {
	// ThrottleBackoff is the wait after a throttled response.
	ThrottleBackoff time.Duration

	// MaxThrottleRetries bounds retries after throttling; the total number
	// of attempts is MaxThrottleRetries+1.
	MaxThrottleRetries int

	// Clock drives the backoff waits.
	Clock ratelimit.Clock

	// Cache is optional.
	Cache Cache
}

// DefaultConfig returns the default fetcher configuration.
func DefaultConfig() Config {
	return Config{
		ThrottleBackoff:    2 * time.Second,
		MaxThrottleRetries: 3,
		Clock:              ratelimit.SystemClock{},
	}
}

// Result is the outcome of fetching one item.
type Result struct {
	CatalogID int64            `json:"catalog_id"`
	Listings  []market.Listing `json:"listings"`
	Outcome   Outcome          `json:"outcome"`

	// Attempts counts network attempts; 0 when served from cache.
	Attempts  int  `json:"attempts"`
	FromCache bool `json:"from_cache"`

	// Err is the last source error for failed outcomes.
	Err error `json:"-"`
}

// Fetcher fetches listings for one item at a time. It is safe for
// concurrent use.
type Fetcher struct {
	source  Source
	limiter Limiter
	config  Config
	logger  zerolog.Logger
}

// New creates a listing fetcher.
func New(source Source, limiter Limiter, cfg Config, logger zerolog.Logger) (*Fetcher, error) {
	if source == nil {
		return nil, fmt.Errorf("listing source is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if cfg.ThrottleBackoff < 0 {
		return nil, fmt.Errorf("throttle_backoff cannot be negative (got %s)", cfg.ThrottleBackoff)
	}
	if cfg.MaxThrottleRetries < 0 {
		return nil, fmt.Errorf("max_throttle_retries cannot be negative (got %d)", cfg.MaxThrottleRetries)
	}
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.SystemClock{}
	}

	return &Fetcher{
		source:  source,
		limiter: limiter,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Fetch returns the listings for catalogID that pass criteria.
func (f *Fetcher) Fetch(ctx context.Context, catalogID int64, criteria market.Criteria) Result {
	start := time.Now()
	res := f.fetch(ctx, catalogID, criteria)

	fetchTotal.WithLabelValues(string(res.Outcome)).Inc()
	fetchDuration.Observe(time.Since(start).Seconds())

	event := f.logger.Debug()
	if res.Outcome.Failed() && res.Outcome != OutcomeCancelled {
		event = f.logger.Warn().Err(res.Err)
	}
	event.
		Int64("catalog_id", catalogID).
		Str("outcome", string(res.Outcome)).
		Int("attempts", res.Attempts).
		Bool("from_cache", res.FromCache).
		Int("listings", len(res.Listings)).
		Msg("Listing fetch finished")

	return res
}

func (f *Fetcher) fetch(ctx context.Context, catalogID int64, criteria market.Criteria) Result {
	res := Result{CatalogID: catalogID, Listings: []market.Listing{}}

	raw, ok := f.fromCache(ctx, catalogID)
	if ok {
		res.FromCache = true
	} else {
		var outcome Outcome
		raw, outcome, res.Attempts, res.Err = f.fetchRaw(ctx, catalogID)
		if outcome != "" {
			res.Outcome = outcome
			return res
		}
		f.toCache(ctx, catalogID, raw)
	}

	res.Listings = criteria.Filter(Normalize(raw))
	if len(res.Listings) == 0 {
		res.Outcome = OutcomeNoListings
	} else {
		res.Outcome = OutcomeOK
	}
	return res
}

// fetchRaw runs the attempt loop. A non-empty outcome means the fetch failed.
func (f *Fetcher) fetchRaw(ctx context.Context, catalogID int64) ([]market.RawListing, Outcome, int, error) {
	attempts := 0
	for {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, OutcomeCancelled, attempts, err
		}
		attempts++

		raw, err := f.source.GetListings(ctx, catalogID)
		if err == nil {
			return raw, "", attempts, nil
		}

		switch {
		case ctx.Err() != nil:
			return nil, OutcomeCancelled, attempts, ctx.Err()
		case errors.Is(err, market.ErrThrottled):
			if attempts > f.config.MaxThrottleRetries {
				return nil, OutcomeThrottled, attempts, err
			}
		case errors.Is(err, market.ErrNotFound):
			return nil, OutcomeNotFound, attempts, err
		default:
			return nil, OutcomeFailed, attempts, err
		}

		throttleRetriesTotal.Inc()
		f.logger.Warn().
			Int64("catalog_id", catalogID).
			Int("attempt", attempts).
			Dur("wait", f.config.ThrottleBackoff).
			Msg("Listing request throttled, backing off")

		select {
		case <-ctx.Done():
			return nil, OutcomeCancelled, attempts, ctx.Err()
		case <-f.config.Clock.After(f.config.ThrottleBackoff):
		}
	}
}

func (f *Fetcher) fromCache(ctx context.Context, catalogID int64) ([]market.RawListing, bool) {
	if f.config.Cache == nil {
		return nil, false
	}
	raw, err := f.config.Cache.Get(ctx, catalogID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			f.logger.Warn().Err(err).Int64("catalog_id", catalogID).Msg("Cache get error")
		}
		return nil, false
	}
	f.logger.Debug().Int64("catalog_id", catalogID).Msg("Listings served from cache")
	return raw, true
}

func (f *Fetcher) toCache(ctx context.Context, catalogID int64, raw []market.RawListing) {
	if f.config.Cache == nil {
		return
	}
	if err := f.config.Cache.Set(ctx, catalogID, raw); err != nil {
		f.logger.Warn().Err(err).Int64("catalog_id", catalogID).Msg("Failed to cache listings")
	}
}
