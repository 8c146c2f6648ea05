// Package analysis runs a want-list analysis end to end: fetch the want
// list, schedule the listing lookups, fold the results and rank sellers.
//
// A run moves Idle → FetchingWantList → Batching → Aggregating and ends in
// Reported or Failed. Failures are *Error values with a Reason; an empty
// want list and a run where no seller matched still return a report
// alongside the error.
//
// The Engine holds no state between runs. Asynchronous runs are tracked by
// Session values, which the caller stores (see Sessions).
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3faceees/discogs-backend/pkg/aggregate"
	"github.com/3faceees/discogs-backend/pkg/listing"
	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/3faceees/discogs-backend/pkg/scheduler"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for analysis runs.
var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wantlist_analysis_runs_total",
		Help: "Total analysis runs by outcome",
	}, []string{"outcome"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wantlist_analysis_run_duration_seconds",
		Help:    "Analysis run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wantlist_analysis_active_runs",
		Help: "Analysis runs currently in progress",
	})
)

// State is the phase of a run.
type State string

const (
	StateIdle             State = "idle"
	StateFetchingWantList State = "fetching_want_list"
	StateBatching         State = "batching"
	StateAggregating      State = "aggregating"
	StateReported         State = "reported"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition happens.
func (s State) Terminal() bool {
	return s == StateReported || s == StateFailed
}

// WantListSource fetches a user's want list. Errors wrap market.ErrNotFound,
// market.ErrForbidden or market.ErrUnavailable.
type WantListSource interface {
	GetWantList(ctx context.Context, username string) ([]market.WantItem, error)
}

// Runner schedules listing lookups. scheduler.Scheduler implements it.
type Runner interface {
	Run(ctx context.Context, job scheduler.Job, sink scheduler.Sink) scheduler.Summary
}

// Config holds engine configuration.
type Config struct {
	// Aggregate configures shipping, currency and ranking size.
	Aggregate aggregate.Config

	// RunTimeout bounds the batching phase. When it expires the report is
	// built from what was folded so far and marked partial. 0 disables it.
	RunTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Aggregate:  aggregate.DefaultConfig(),
		RunTimeout: 10 * time.Minute,
	}
}

// Request is one analysis request.
type Request struct {
	Username    string          `json:"username" validate:"required,max=64"`
	Criteria    market.Criteria `json:"criteria"`
	MaxItems    int             `json:"max_items,omitempty" validate:"gte=0"`
	Concurrency int             `json:"concurrency,omitempty" validate:"gte=0,lte=64"`
}

// Engine runs analyses.
type Engine struct {
	source WantListSource
	runner Runner
	config Config
	logger zerolog.Logger
}

// New creates an engine.
func New(source WantListSource, runner Runner, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("want list source is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.RunTimeout < 0 {
		return nil, fmt.Errorf("run_timeout cannot be negative (got %s)", cfg.RunTimeout)
	}
	if cfg.Aggregate.ShippingPerOrder.IsNegative() {
		return nil, fmt.Errorf("shipping_per_order cannot be negative")
	}

	return &Engine{
		source: source,
		runner: runner,
		config: cfg,
		logger: logger,
	}, nil
}

// Analyze runs one analysis synchronously.
//
// On ErrEmptySource and ErrNoMatch the returned report is non-nil and
// describes the (empty) result.
func (e *Engine) Analyze(ctx context.Context, req Request) (*aggregate.Report, error) {
	return e.run(ctx, uuid.NewString(), req, nil)
}

// run executes the state machine, reporting each transition to track.
func (e *Engine) run(ctx context.Context, runID string, req Request, track func(State)) (report *aggregate.Report, err error) {
	start := time.Now()
	logger := e.logger.With().Str("run_id", runID).Str("username", req.Username).Logger()

	// Terminal states are only logged; the caller records them together
	// with the result.
	transition := func(s State) {
		logger.Debug().Str("state", string(s)).Msg("Run state changed")
		if track != nil && !s.Terminal() {
			track(s)
		}
	}

	activeRuns.Inc()
	defer func() {
		activeRuns.Dec()
		runDuration.Observe(time.Since(start).Seconds())

		outcome := "reported"
		var runErr *Error
		if errors.As(err, &runErr) {
			outcome = string(runErr.Reason)
		} else if err != nil {
			outcome = "error"
		}
		runsTotal.WithLabelValues(outcome).Inc()

		if err != nil {
			transition(StateFailed)
		} else {
			transition(StateReported)
		}
	}()

	if err := req.Validate(); err != nil {
		logger.Warn().Err(err).Msg("Invalid analysis request")
		return nil, err
	}

	transition(StateFetchingWantList)
	items, err := e.source.GetWantList(ctx, req.Username)
	if err != nil {
		runErr := classifySourceError(ctx, err)
		logger.Error().Err(err).Str("reason", string(runErr.Reason)).Msg("Want list fetch failed")
		return nil, runErr
	}

	items = withPositions(items)
	agg := aggregate.New(e.config.Aggregate)

	if len(items) == 0 {
		empty := agg.Finalize(aggregate.RunInfo{
			Username: req.Username,
			Duration: time.Since(start),
		})
		logger.Info().Msg("Want list is empty")
		return &empty, &Error{Reason: ReasonEmptySource, Message: "want list has no items"}
	}

	transition(StateBatching)
	logger.Info().Int("items", len(items)).Msg("Analysis started")

	runCtx := ctx
	if e.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.config.RunTimeout)
		defer cancel()
	}

	summary := e.runner.Run(runCtx, scheduler.Job{
		Items:       items,
		Criteria:    req.Criteria,
		Concurrency: req.Concurrency,
		MaxItems:    req.MaxItems,
	}, func(item market.WantItem, res listing.Result) {
		agg.Fold(item, res.Listings)
	})

	transition(StateAggregating)

	cancelled := summary.Outcomes[listing.OutcomeCancelled]
	result := agg.Finalize(aggregate.RunInfo{
		Username:       req.Username,
		TotalWantItems: len(items),
		AnalyzedItems:  summary.Completed - cancelled,
		FailedItems:    summary.Failed() - cancelled,
		Duration:       time.Since(start),
		Partial:        summary.Cancelled || cancelled > 0,
	})

	logger.Info().
		Int("analyzed", result.AnalyzedItemCount).
		Int("failed", result.FailedItemCount).
		Int("sellers", result.SellerCount).
		Bool("partial", result.Partial).
		Dur("duration", time.Since(start)).
		Msg("Analysis finished")

	if result.SellerCount == 0 {
		return &result, &Error{Reason: ReasonNoMatch, Message: "no seller matched any want-list item"}
	}
	return &result, nil
}

// withPositions returns a copy of items numbered by list order, so ties
// between sellers resolve the same way whatever the source filled in.
func withPositions(items []market.WantItem) []market.WantItem {
	out := make([]market.WantItem, len(items))
	for i, item := range items {
		item.Position = i
		out[i] = item
	}
	return out
}

// classifySourceError maps a want-list failure onto a run failure.
func classifySourceError(ctx context.Context, err error) *Error {
	switch {
	case ctx.Err() != nil:
		return &Error{Reason: ReasonCancelled, Message: "cancelled while fetching want list", Err: err}
	case errors.Is(err, market.ErrNotFound):
		return &Error{Reason: ReasonSourceNotFound, Message: "want list not found", Err: err}
	case errors.Is(err, market.ErrForbidden):
		return &Error{Reason: ReasonSourceForbidden, Message: "want list is private", Err: err}
	default:
		return &Error{Reason: ReasonSourceUnavailable, Message: "want list unavailable", Err: err}
	}
}
