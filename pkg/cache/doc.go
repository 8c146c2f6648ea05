// Package cache holds marketplace listing responses between analysis runs.
//
// Entries are the raw, unfiltered listings for one catalog item, so one
// entry serves every filter criteria. Two stores are provided:
//
//   - MemoryStore: an in-process expiring LRU, the default.
//   - RedisStore: a shared Redis-backed store for multi-instance deployments.
//
// Both return ErrCacheMiss for absent or expired entries.
//
// # Basic Usage
//
//	store, err := cache.NewMemoryStore(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	raw, err := store.Get(ctx, 249504)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the marketplace, then:
//		_ = store.Set(ctx, 249504, raw)
//	}
//
// # Redis
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store, err := cache.NewRedisStore(redisClient, cache.DefaultConfig())
//
// # Metrics
//
//   - wantlist_cache_hits_total{layer} - Cache hits
//   - wantlist_cache_misses_total{layer} - Cache misses
//   - wantlist_cache_errors_total{layer,operation} - Cache operation errors
//   - wantlist_cache_entries{layer} - Entries held by the memory layer
package cache
