package market

import "errors"

// Signals returned (wrapped) by want-list and listing sources.
var (
	// ErrThrottled means the upstream rejected the request for exceeding its
	// rate limit (HTTP 429). Listing fetchers back off and retry on it.
	ErrThrottled = errors.New("market: throttled by upstream")

	// ErrNotFound means the user, list or catalog item does not exist.
	ErrNotFound = errors.New("market: not found")

	// ErrForbidden means the resource exists but is private.
	ErrForbidden = errors.New("market: forbidden")

	// ErrUnavailable means a transient upstream or network failure.
	ErrUnavailable = errors.New("market: upstream unavailable")
)
