package cache

import (
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
)

// Entry is one cached listing response.
type Entry struct {
	// Listings are the raw listings as delivered by the source.
	Listings []market.RawListing `json:"listings"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response.
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
