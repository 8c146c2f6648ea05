package cache

import (
	"context"
	"fmt"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is an in-process expiring LRU of listing responses.
type MemoryStore struct {
	lru *expirable.LRU[int64, []market.RawListing]
}

// NewMemoryStore creates a memory store holding at most cfg.Size entries for
// cfg.TTL each.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("size must be > 0 (got %d)", cfg.Size)
	}
	return &MemoryStore{
		lru: expirable.NewLRU[int64, []market.RawListing](cfg.Size, nil, cfg.TTL),
	}, nil
}

// Get returns the cached listings for catalogID or ErrCacheMiss.
func (s *MemoryStore) Get(_ context.Context, catalogID int64) ([]market.RawListing, error) {
	raw, ok := s.lru.Get(catalogID)
	if !ok {
		CacheMisses.WithLabelValues(layerMemory).Inc()
		return nil, ErrCacheMiss
	}
	CacheHits.WithLabelValues(layerMemory).Inc()
	return cloneListings(raw), nil
}

// Set stores the listings for catalogID.
func (s *MemoryStore) Set(_ context.Context, catalogID int64, raw []market.RawListing) error {
	s.lru.Add(catalogID, cloneListings(raw))
	CacheEntries.WithLabelValues(layerMemory).Set(float64(s.lru.Len()))
	return nil
}

// Delete removes the entry for catalogID.
func (s *MemoryStore) Delete(_ context.Context, catalogID int64) error {
	s.lru.Remove(catalogID)
	CacheEntries.WithLabelValues(layerMemory).Set(float64(s.lru.Len()))
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}

// cloneListings copies the slice so callers cannot mutate cached state.
func cloneListings(raw []market.RawListing) []market.RawListing {
	if raw == nil {
		return []market.RawListing{}
	}
	out := make([]market.RawListing, len(raw))
	copy(out, raw)
	return out
}
