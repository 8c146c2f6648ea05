package cache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Config configures a listing store.
type Config struct {
	// TTL is how long listings stay fresh. Marketplace inventory moves, so
	// keep this short.
	TTL time.Duration

	// Size bounds the number of entries (memory store only).
	Size int

	// Namespace prefixes keys (Redis store only).
	Namespace string

	// Currency is part of every key.
	Currency string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		TTL:       15 * time.Minute,
		Size:      10000,
		Namespace: DefaultNamespace,
		Currency:  "USD",
	}
}

func (c Config) validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("ttl must be > 0 (got %s)", c.TTL)
	}
	return nil
}
