package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/shopspring/decimal"
)

func sampleListings() []market.RawListing {
	return []market.RawListing{
		{ID: "1", SellerID: "alpha", Price: decimal.RequireFromString("10.00"), Currency: "USD", Condition: "Mint (M)"},
		{ID: "2", SellerID: "beta", Price: decimal.RequireFromString("12.50"), Currency: "USD"},
	}
}

func TestNewMemoryStore_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero ttl", Config{TTL: 0, Size: 10}, true},
		{"zero size", Config{TTL: time.Minute, Size: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMemoryStore(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMemoryStore() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_SetAndGet(t *testing.T) {
	store, err := NewMemoryStore(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, 42); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("Get() on empty store error = %v, want ErrCacheMiss", err)
	}

	if err := store.Set(ctx, 42, sampleListings()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got) != 2 || got[0].SellerID != "alpha" || !got[1].Price.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("Get() = %+v", got)
	}

	// Mutating the returned slice must not change the cached entry.
	got[0].SellerID = "mutated"
	again, _ := store.Get(ctx, 42)
	if again[0].SellerID != "alpha" {
		t.Error("cached entry was mutated through a returned slice")
	}
}

func TestMemoryStore_EmptyListingsAreCached(t *testing.T) {
	store, err := NewMemoryStore(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, 7, nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get() error = %v, want a cached empty result", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Get() = %v, want empty non-nil slice", got)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, err := NewMemoryStore(Config{TTL: 20 * time.Millisecond, Size: 10})
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Set(ctx, 1, sampleListings()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after TTL error = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryStore_Eviction(t *testing.T) {
	store, err := NewMemoryStore(Config{TTL: time.Minute, Size: 2})
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := store.Set(ctx, id, sampleListings()); err != nil {
			t.Fatalf("Set(%d) error = %v", id, err)
		}
	}

	if store.Len() != 2 {
		t.Errorf("Len() = %d, want 2", store.Len())
	}
	if _, err := store.Get(ctx, 1); !errors.Is(err, ErrCacheMiss) {
		t.Error("oldest entry should have been evicted")
	}

	if err := store.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, 3); !errors.Is(err, ErrCacheMiss) {
		t.Error("deleted entry still present")
	}
}
