package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/3faceees/discogs-backend/pkg/listing"
	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/3faceees/discogs-backend/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for batch scheduling.
var (
	batchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_scheduler_batches_total",
		Help: "Total batches run",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wantlist_scheduler_batch_duration_seconds",
		Help:    "Time to resolve one batch",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120},
	})

	itemsCappedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wantlist_scheduler_items_capped_total",
		Help: "Total want-list items skipped by the item cap",
	})
)

// CapPolicy selects which items survive the item cap.
type CapPolicy string

const (
	// CapTruncate keeps the first MaxItems items in list order.
	CapTruncate CapPolicy = "truncate"

	// CapSample keeps a random MaxItems subset, seeded by Config.Seed.
	CapSample CapPolicy = "sample"
)

// Batch sizing by access tier.
const (
	AuthenticatedBatchSize  = 25
	AuthenticatedBatchDelay = 1 * time.Second
	AnonymousBatchSize      = 5
	AnonymousBatchDelay     = 5 * time.Second
)

// Fetcher fetches one item. listing.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, catalogID int64, criteria market.Criteria) listing.Result
}

// Sink receives each item's result. It may be called concurrently.
type Sink func(item market.WantItem, res listing.Result)

// Config holds scheduler configuration
type Config struct {
	// BatchSize is the number of items per batch.
	BatchSize int

	// BatchDelay is the pause between batches (not after the last one).
	BatchDelay time.Duration

	// Concurrency bounds in-flight fetches within a batch. 0 means BatchSize.
	Concurrency int

	// MaxItems caps how many items are scheduled. 0 means no cap.
	MaxItems int

	// CapPolicy applies when the list exceeds MaxItems.
	CapPolicy CapPolicy

	// Seed for CapSample. 0 seeds from the current time.
	Seed int64

	// Clock drives the pacing delay.
	Clock ratelimit.Clock
}

// ConfigFor returns the batch sizing for the given access tier.
func ConfigFor(authenticated bool) Config {
	cfg := Config{
		BatchSize:  AnonymousBatchSize,
		BatchDelay: AnonymousBatchDelay,
		CapPolicy:  CapTruncate,
		Clock:      ratelimit.SystemClock{},
	}
	if authenticated {
		cfg.BatchSize = AuthenticatedBatchSize
		cfg.BatchDelay = AuthenticatedBatchDelay
	}
	return cfg
}

// Job is one scheduling request. Non-zero Concurrency and MaxItems override
// the scheduler's configuration for this job.
type Job struct {
	Items       []market.WantItem
	Criteria    market.Criteria
	Concurrency int
	MaxItems    int
}

// Summary describes a finished run.
type Summary struct {
	Total     int                     `json:"total"`
	Scheduled int                     `json:"scheduled"`
	Capped    int                     `json:"capped"`
	Batches   int                     `json:"batches"`
	Completed int                     `json:"completed"`
	Outcomes  map[listing.Outcome]int `json:"outcomes"`
	Cancelled bool                    `json:"cancelled"`
	Duration  time.Duration           `json:"duration"`
}

// Failed counts items whose lookup failed.
func (s Summary) Failed() int {
	n := 0
	for outcome, count := range s.Outcomes {
		if outcome.Failed() {
			n += count
		}
	}
	return n
}

// Scheduler runs jobs. It holds no per-run state and may run several jobs
// at once.
type Scheduler struct {
	fetcher Fetcher
	config  Config
	logger  zerolog.Logger
}

// New creates a scheduler.
func New(fetcher Fetcher, cfg Config, logger zerolog.Logger) (*Scheduler, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch_size must be > 0 (got %d)", cfg.BatchSize)
	}
	if cfg.BatchDelay < 0 {
		return nil, fmt.Errorf("batch_delay cannot be negative (got %s)", cfg.BatchDelay)
	}
	if cfg.Concurrency < 0 || cfg.MaxItems < 0 {
		return nil, fmt.Errorf("concurrency and max_items cannot be negative")
	}
	switch cfg.CapPolicy {
	case "":
		cfg.CapPolicy = CapTruncate
	case CapTruncate, CapSample:
	default:
		return nil, fmt.Errorf("unknown cap policy %q", cfg.CapPolicy)
	}
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.SystemClock{}
	}

	return &Scheduler{
		fetcher: fetcher,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Run fetches every scheduled item of job and hands each result to sink.
// It returns when all batches resolved or ctx ended; on cancellation no
// further batch is started and Summary.Cancelled is set.
func (s *Scheduler) Run(ctx context.Context, job Job, sink Sink) Summary {
	start := time.Now()

	maxItems := s.config.MaxItems
	if job.MaxItems > 0 {
		maxItems = job.MaxItems
	}
	items := s.capItems(job.Items, maxItems)

	concurrency := s.config.Concurrency
	if job.Concurrency > 0 {
		concurrency = job.Concurrency
	}

	summary := Summary{
		Total:     len(job.Items),
		Scheduled: len(items),
		Capped:    len(job.Items) - len(items),
		Outcomes:  make(map[listing.Outcome]int),
	}
	if summary.Capped > 0 {
		itemsCappedTotal.Add(float64(summary.Capped))
	}

	batches := partition(items, s.config.BatchSize)

	s.logger.Info().
		Int("items", summary.Scheduled).
		Int("capped", summary.Capped).
		Int("batches", len(batches)).
		Int("batch_size", s.config.BatchSize).
		Dur("batch_delay", s.config.BatchDelay).
		Msg("Starting batched listing fetch")

	var mu sync.Mutex
	record := func(item market.WantItem, res listing.Result) {
		if sink != nil {
			sink(item, res)
		}
		mu.Lock()
		summary.Completed++
		summary.Outcomes[res.Outcome]++
		mu.Unlock()
	}

	for i, batch := range batches {
		if i > 0 && s.config.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-s.config.Clock.After(s.config.BatchDelay):
			}
		}
		if ctx.Err() != nil {
			summary.Cancelled = true
			s.logger.Warn().
				Int("batch", i+1).
				Int("completed", summary.Completed).
				Msg("Stopping before batch (context done)")
			break
		}

		s.runBatch(ctx, batch, job.Criteria, concurrency, record)
		summary.Batches++

		s.logger.Info().
			Int("batch", i+1).
			Int("of", len(batches)).
			Int("completed", summary.Completed).
			Msg("Batch resolved")
	}

	if ctx.Err() != nil {
		summary.Cancelled = true
	}
	summary.Duration = time.Since(start)

	s.logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed()).
		Bool("cancelled", summary.Cancelled).
		Dur("duration", summary.Duration).
		Msg("Batched listing fetch complete")

	return summary
}

// runBatch fetches every item of batch and waits for all of them.
func (s *Scheduler) runBatch(ctx context.Context, batch []market.WantItem, criteria market.Criteria, concurrency int, record Sink) {
	start := time.Now()
	defer func() {
		batchesTotal.Inc()
		batchDuration.Observe(time.Since(start).Seconds())
	}()

	limit := len(batch)
	if concurrency > 0 && concurrency < limit {
		limit = concurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range batch {
		item := item
		g.Go(func() error {
			record(item, s.fetcher.Fetch(ctx, item.CatalogID, criteria))
			return nil
		})
	}
	_ = g.Wait()
}

// capItems applies the item cap before anything is submitted.
func (s *Scheduler) capItems(items []market.WantItem, maxItems int) []market.WantItem {
	if maxItems <= 0 || len(items) <= maxItems {
		return items
	}

	if s.config.CapPolicy != CapSample {
		return items[:maxItems]
	}

	seed := s.config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	idx := rand.New(rand.NewSource(seed)).Perm(len(items))[:maxItems]
	sort.Ints(idx)

	out := make([]market.WantItem, 0, maxItems)
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}

// partition splits items into chunks of at most size.
func partition(items []market.WantItem, size int) [][]market.WantItem {
	var batches [][]market.WantItem
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
