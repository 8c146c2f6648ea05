package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream rate limit tracking.
var (
	upstreamRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wantlist_upstream_ratelimit_remaining",
		Help: "Requests remaining in the upstream rate limit window, as last reported",
	})

	upstreamUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wantlist_upstream_ratelimit_used",
		Help: "Requests used in the upstream rate limit window, as last reported",
	})

	upstreamExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_upstream_ratelimit_exhausted_total",
		Help: "Total number of responses reporting an exhausted upstream budget",
	})
)

// Reconciler is the part of Window the tracker drives.
type Reconciler interface {
	Reconcile(upstreamUsed int)
}

// Tracker records the upstream's reported rate limit state and pushes it
// into the local window.
type Tracker struct {
	window Reconciler
	logger zerolog.Logger

	mu    sync.RWMutex
	state RateLimitState
}

// NewTracker creates a tracker. window may be nil, in which case the tracker
// only records state and metrics.
func NewTracker(window Reconciler, logger zerolog.Logger) *Tracker {
	return &Tracker{
		window: window,
		logger: logger,
	}
}

// GetState returns the last reported state. Before any response was seen
// the zero state (Limit 0) is returned.
func (t *Tracker) GetState() RateLimitState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// UpdateFromHeaders parses the upstream rate limit headers. Responses without
// them are ignored.
func (t *Tracker) UpdateFromHeaders(headers http.Header) error {
	limitStr := headers.Get(HeaderLimit)
	if limitStr == "" {
		return nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return fmt.Errorf("parse %s header: %w", HeaderLimit, err)
	}

	used, err := parseIntHeader(headers, HeaderUsed)
	if err != nil {
		return err
	}

	remaining, err := parseIntHeader(headers, HeaderRemaining)
	if err != nil {
		return err
	}

	state := RateLimitState{
		Limit:      limit,
		Used:       used,
		Remaining:  remaining,
		LastUpdate: time.Now(),
	}

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	upstreamRemaining.Set(float64(remaining))
	upstreamUsed.Set(float64(used))

	if t.window != nil {
		t.window.Reconcile(used)
	}

	switch {
	case state.Exhausted():
		upstreamExhaustedTotal.Inc()
		t.logger.Warn().
			Int("limit", limit).
			Int("used", used).
			Msg("Upstream rate limit exhausted")
	case state.NeedsThrottling():
		t.logger.Info().
			Int("remaining", remaining).
			Int("limit", limit).
			Msg("Upstream rate limit running low")
	default:
		t.logger.Debug().
			Int("remaining", remaining).
			Int("used", used).
			Msg("Upstream rate limit state updated")
	}

	return nil
}

func parseIntHeader(headers http.Header, name string) (int, error) {
	v := headers.Get(name)
	if v == "" {
		return 0, fmt.Errorf("%s header missing", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s header: %w", name, err)
	}
	return n, nil
}
