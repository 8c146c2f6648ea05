package cache

import (
	"strconv"
	"strings"
)

// DefaultNamespace prefixes every cache key.
const DefaultNamespace = "wantlist"

// Key identifies the cached listings of one catalog item.
type Key struct {
	// Namespace separates deployments sharing one Redis.
	Namespace string

	// CatalogID is the catalog item the listings belong to.
	CatalogID int64

	// Currency the prices were requested in; listings in different
	// currencies are different entries.
	Currency string
}

// String generates a deterministic cache key string.
// Format: namespace:listings:currency:catalog_id
//
// Example:
//
//	wantlist:listings:usd:249504
func (k Key) String() string {
	ns := strings.Trim(k.Namespace, ":")
	if ns == "" {
		ns = DefaultNamespace
	}

	parts := []string{ns, "listings"}
	if c := strings.ToLower(strings.TrimSpace(k.Currency)); c != "" {
		parts = append(parts, c)
	}
	parts = append(parts, strconv.FormatInt(k.CatalogID, 10))

	return strings.Join(parts, ":")
}
