package ratelimit

import (
	"time"
)

// Upstream rate limit headers.
const (
	HeaderLimit     = "X-Discogs-Ratelimit"
	HeaderUsed      = "X-Discogs-Ratelimit-Used"
	HeaderRemaining = "X-Discogs-Ratelimit-Remaining"
)

// ThrottleFraction is the share of the upstream budget below which the state
// is reported as needing throttling.
const ThrottleFraction = 0.1

// RateLimitState is the upstream's view of its own rate limit window, as last
// reported in response headers.
type RateLimitState struct {
	// Limit is the upstream's requests-per-window ceiling.
	Limit int `json:"limit"`

	// Used is how many requests the upstream has counted in its window.
	Used int `json:"used"`

	// Remaining is how many requests the upstream will still accept.
	Remaining int `json:"remaining"`

	// LastUpdate is when these values were read.
	LastUpdate time.Time `json:"last_update"`
}

// IsStale returns true if the state is older than maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// Exhausted returns true if the upstream reports no remaining budget.
func (s *RateLimitState) Exhausted() bool {
	return s.Limit > 0 && s.Remaining <= 0
}

// NeedsThrottling returns true when less than ThrottleFraction of the
// upstream budget remains.
func (s *RateLimitState) NeedsThrottling() bool {
	if s.Limit <= 0 {
		return false
	}
	return float64(s.Remaining) < float64(s.Limit)*ThrottleFraction
}
