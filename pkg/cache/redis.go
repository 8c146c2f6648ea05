package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps listing responses in Redis with a TTL, so several
// analyzer instances share one cache.
type RedisStore struct {
	redis     *redis.Client
	ttl       time.Duration
	namespace string
	currency  string
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, cfg Config) (*RedisStore, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &RedisStore{
		redis:     redisClient,
		ttl:       cfg.TTL,
		namespace: cfg.Namespace,
		currency:  cfg.Currency,
	}, nil
}

func (s *RedisStore) key(catalogID int64) string {
	return Key{Namespace: s.namespace, CatalogID: catalogID, Currency: s.currency}.String()
}

// Get returns the cached listings for catalogID.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (s *RedisStore) Get(ctx context.Context, catalogID int64) ([]market.RawListing, error) {
	data, err := s.redis.Get(ctx, s.key(catalogID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(layerRedis).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(layerRedis, "get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(layerRedis, "get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = s.Delete(ctx, catalogID)
		CacheMisses.WithLabelValues(layerRedis).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(layerRedis).Inc()
	if entry.Listings == nil {
		entry.Listings = []market.RawListing{}
	}
	return entry.Listings, nil
}

// Set stores the listings for catalogID. Redis drops the key after the TTL.
func (s *RedisStore) Set(ctx context.Context, catalogID int64, raw []market.RawListing) error {
	now := time.Now()
	entry := Entry{
		Listings: raw,
		Expires:  now.Add(s.ttl),
		CachedAt: now,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues(layerRedis, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(catalogID), data, s.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(layerRedis, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a cache entry.
func (s *RedisStore) Delete(ctx context.Context, catalogID int64) error {
	if err := s.redis.Del(ctx, s.key(catalogID)).Err(); err != nil {
		CacheErrors.WithLabelValues(layerRedis, "delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
