package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/shopspring/decimal"
)

func TestEntry_ListingsSurviveEncoding(t *testing.T) {
	rating := 99.4
	entry := Entry{
		Listings: []market.RawListing{
			{ID: "901", SellerID: "crate", Price: decimal.RequireFromString("18.50"), Currency: "USD", Condition: "Very Good Plus (VG+)", SellerRating: &rating, SellerRatingCount: 120},
			{ID: "902", SellerID: "bins", Price: decimal.RequireFromString("7"), Currency: "USD"},
		},
		Expires:  time.Now().Add(time.Minute).UTC().Truncate(time.Second),
		CachedAt: time.Now().UTC().Truncate(time.Second),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got Entry
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if len(got.Listings) != 2 {
		t.Fatalf("len(Listings) = %d, want 2", len(got.Listings))
	}
	if !got.Listings[0].Price.Equal(decimal.RequireFromString("18.5")) {
		t.Errorf("Price = %s, want 18.5", got.Listings[0].Price)
	}
	if got.Listings[0].SellerRating == nil || *got.Listings[0].SellerRating != rating {
		t.Errorf("SellerRating = %v, want %v", got.Listings[0].SellerRating, rating)
	}
	if got.Listings[1].SellerRating != nil {
		t.Errorf("absent rating decoded as %v, want nil", *got.Listings[1].SellerRating)
	}
	if !got.Expires.Equal(entry.Expires) {
		t.Errorf("Expires = %v, want %v", got.Expires, entry.Expires)
	}
}

func TestEntry_Freshness(t *testing.T) {
	tests := []struct {
		name        string
		offset      time.Duration
		wantExpired bool
	}{
		{"fresh", time.Hour, false},
		{"stale", -time.Hour, true},
		{"just stale", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Entry{Expires: time.Now().Add(tt.offset)}
			if got := e.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
			ttl := e.TTL()
			if tt.wantExpired && ttl != 0 {
				t.Errorf("TTL() = %v, want 0 for a stale entry", ttl)
			}
			if !tt.wantExpired && (ttl <= 0 || ttl > tt.offset) {
				t.Errorf("TTL() = %v, want within (0, %v]", ttl, tt.offset)
			}
		})
	}
}
