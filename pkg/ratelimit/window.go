// Package ratelimit gates outbound marketplace requests.
//
// Window enforces a hard ceiling of N grants per rolling period (one minute
// by default) across every worker sharing it. Tracker reads the upstream's
// own rate-limit headers and reconciles the window when the upstream reports
// more usage than was granted locally.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Defaults for the sliding window.
const (
	DefaultPeriod       = 60 * time.Second
	DefaultSafetyMargin = 250 * time.Millisecond
)

// Prometheus metrics for the sliding window.
var (
	windowUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wantlist_ratelimit_window_used",
		Help: "Grants recorded in the current rate limit window",
	})

	windowLimit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wantlist_ratelimit_window_limit",
		Help: "Configured grants per rate limit window",
	})

	windowWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_ratelimit_waits_total",
		Help: "Total number of times a caller had to wait for window capacity",
	})

	windowWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wantlist_ratelimit_wait_seconds",
		Help:    "Time spent waiting for window capacity",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60},
	})
)

// Stats is a point-in-time view of the window.
type Stats struct {
	UsedInWindow int `json:"used_in_window"`
	Limit        int `json:"limit"`
	Available    int `json:"available"`
}

// Option configures a Window.
type Option func(*Window)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(w *Window) { w.clock = c }
}

// WithPeriod sets the rolling period.
func WithPeriod(d time.Duration) Option {
	return func(w *Window) { w.period = d }
}

// WithSafetyMargin sets the extra wait added after the oldest grant expires.
func WithSafetyMargin(d time.Duration) Option {
	return func(w *Window) { w.margin = d }
}

// Window is a sliding-window limiter: at most limit grants inside any rolling
// period. It is safe for concurrent use; all access to the grant timestamps
// goes through one mutex.
type Window struct {
	mu     sync.RWMutex
	grants []time.Time // ascending

	limit  int
	period time.Duration
	margin time.Duration
	clock  Clock

	// onGrant, when set, observes every grant while the lock is held.
	onGrant func(time.Time)
}

// New creates a window allowing limit grants per period.
func New(limit int, opts ...Option) (*Window, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0 (got %d)", limit)
	}

	w := &Window{
		limit:  limit,
		period: DefaultPeriod,
		margin: DefaultSafetyMargin,
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.period <= 0 {
		return nil, fmt.Errorf("period must be > 0 (got %s)", w.period)
	}
	if w.margin < 0 {
		return nil, fmt.Errorf("safety margin cannot be negative (got %s)", w.margin)
	}

	w.grants = make([]time.Time, 0, limit)
	windowLimit.Set(float64(limit))
	return w, nil
}

// Acquire blocks until a grant fits in the window, records it and returns.
// The window keeps sliding while a caller waits, so capacity is re-evaluated
// after every wait. Returns ctx.Err() if the context ends first.
func (w *Window) Acquire(ctx context.Context) error {
	var waited time.Duration

	for {
		w.mu.Lock()
		now := w.clock.Now()
		w.evictLocked(now)

		if len(w.grants) < w.limit {
			w.grants = append(w.grants, now)
			if w.onGrant != nil {
				w.onGrant(now)
			}
			used := len(w.grants)
			w.mu.Unlock()

			windowUsed.Set(float64(used))
			if waited > 0 {
				windowWaitSeconds.Observe(waited.Seconds())
			}
			return nil
		}

		wait := w.period - now.Sub(w.grants[0]) + w.margin
		w.mu.Unlock()

		if waited == 0 {
			windowWaitsTotal.Inc()
		}
		waited += wait

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(wait):
		}
	}
}

// Stats reports usage without evicting or recording anything.
func (w *Window) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	now := w.clock.Now()
	used := 0
	for _, g := range w.grants {
		if now.Sub(g) < w.period {
			used++
		}
	}

	available := w.limit - used
	if available < 0 {
		available = 0
	}
	return Stats{UsedInWindow: used, Limit: w.limit, Available: available}
}

// Limit returns the configured ceiling.
func (w *Window) Limit() int {
	return w.limit
}

// Reconcile raises local usage to match what the upstream reports as used in
// its own window. Missing grants are recorded at the current time. It never
// removes grants: overcounting only costs wait time.
func (w *Window) Reconcile(upstreamUsed int) {
	if upstreamUsed > w.limit {
		upstreamUsed = w.limit
	}

	w.mu.Lock()
	now := w.clock.Now()
	w.evictLocked(now)
	for len(w.grants) < upstreamUsed {
		w.grants = append(w.grants, now)
	}
	used := len(w.grants)
	w.mu.Unlock()

	windowUsed.Set(float64(used))
}

// evictLocked drops grants that have left the window. Caller holds w.mu.
func (w *Window) evictLocked(now time.Time) {
	i := 0
	for i < len(w.grants) && now.Sub(w.grants[i]) >= w.period {
		i++
	}
	if i > 0 {
		w.grants = append(w.grants[:0], w.grants[i:]...)
	}
}
