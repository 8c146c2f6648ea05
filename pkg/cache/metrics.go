package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache layers used as metric labels.
const (
	layerMemory = "memory"
	layerRedis  = "redis"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wantlist_cache_hits_total",
			Help: "Total number of listing cache hits",
		},
		[]string{"layer"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wantlist_cache_misses_total",
			Help: "Total number of listing cache misses",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wantlist_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"layer", "operation"}, // "get", "set", "delete"
	)

	// CacheEntries tracks entries held in memory
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wantlist_cache_entries",
			Help: "Current number of entries held by the listing cache",
		},
		[]string{"layer"},
	)
)
