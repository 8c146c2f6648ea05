// Package metrics exposes the Prometheus registry used by the analyzer.
// Metrics are declared with promauto in the packages that own them
// (ratelimit, discogs, cache, listing, scheduler, analysis) to keep those
// packages independent; this package documents them and serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package registers into via promauto.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Local Rate Limiter (pkg/ratelimit):
//   - wantlist_ratelimit_window_used (Gauge): Grants inside the current 60s window
//   - wantlist_ratelimit_window_limit (Gauge): Configured grants per window
//   - wantlist_ratelimit_waits_total (Counter): Acquire calls that had to wait
//   - wantlist_ratelimit_wait_seconds (Histogram): Time spent waiting for a grant
//
// Upstream Rate Limit (pkg/ratelimit):
//   - wantlist_upstream_ratelimit_remaining (Gauge): Remaining requests reported upstream
//   - wantlist_upstream_ratelimit_used (Gauge): Used requests reported upstream
//   - wantlist_upstream_ratelimit_exhausted_total (Counter): Responses reporting zero remaining
//
// Marketplace Client (pkg/discogs):
//   - wantlist_discogs_requests_total{endpoint, status} (Counter)
//   - wantlist_discogs_request_duration_seconds{endpoint} (Histogram)
//   - wantlist_discogs_errors_total{class} (Counter): client, server, rate_limit, network
//   - wantlist_discogs_retries_total{error_class} (Counter)
//   - wantlist_discogs_retry_backoff_seconds{error_class} (Histogram)
//   - wantlist_discogs_retry_exhausted_total{error_class} (Counter)
//
// Listing Cache (pkg/cache):
//   - wantlist_cache_hits_total{layer} (Counter): memory or redis
//   - wantlist_cache_misses_total{layer} (Counter)
//   - wantlist_cache_errors_total{layer, operation} (Counter)
//   - wantlist_cache_entries{layer} (Gauge)
//
// Listing Fetcher (pkg/listing):
//   - wantlist_listing_fetch_total{outcome} (Counter): ok, no_listings, not_found, throttled, failed, cancelled
//   - wantlist_listing_fetch_duration_seconds (Histogram)
//   - wantlist_listing_throttle_retries_total (Counter)
//   - wantlist_listing_dropped_total (Counter): Listings dropped during normalization
//
// Scheduler (pkg/scheduler):
//   - wantlist_scheduler_batches_total (Counter)
//   - wantlist_scheduler_batch_duration_seconds (Histogram)
//   - wantlist_scheduler_items_capped_total (Counter): Items skipped by the per-run cap
//
// Analysis (pkg/analysis):
//   - wantlist_analysis_runs_total{outcome} (Counter): reported or a failure reason
//   - wantlist_analysis_run_duration_seconds (Histogram)
//   - wantlist_analysis_active_runs (Gauge)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(wantlist_cache_hits_total[5m])) /
//   (sum(rate(wantlist_cache_hits_total[5m])) + sum(rate(wantlist_cache_misses_total[5m])))
//
//   # Throttled lookups per minute
//   rate(wantlist_listing_fetch_total{outcome="throttled"}[1m]) * 60
//
//   # Limiter saturation
//   wantlist_ratelimit_window_used / wantlist_ratelimit_window_limit
//
//   # P95 Run Duration
//   histogram_quantile(0.95, rate(wantlist_analysis_run_duration_seconds_bucket[1h]))
