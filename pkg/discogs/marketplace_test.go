package discogs

import (
	"context"
	"errors"
	"testing"

	"github.com/3faceees/discogs-backend/internal/testutil"
	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/3faceees/discogs-backend/pkg/ratelimit"
	"github.com/rs/zerolog"
)

func newMarketplaceClient(t *testing.T, mock *testutil.MockMarketplace, tracker *ratelimit.Tracker) *Client {
	t.Helper()
	cfg := DefaultConfig("wantlist-test/1.0", "")
	cfg.BaseURL = mock.URL()
	cfg.PerPage = 2
	cfg.Retry = fastRetry(2)
	cfg.Tracker = tracker
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestClient_AgainstMockMarketplace(t *testing.T) {
	mock := testutil.NewMockMarketplace()
	defer mock.Close()

	mock.SetWants("digger",
		testutil.MockWant{ID: 11, Title: "Kind of Blue", Artist: "Miles Davis", Year: 1959, Formats: []string{"Vinyl"}},
		testutil.MockWant{ID: 12, Title: "Blue Train", Artist: "John Coltrane", Year: 1958},
		testutil.MockWant{ID: 13, Title: "Moanin'", Artist: "Art Blakey"},
		testutil.MockWant{ID: 14, Title: "Somethin' Else", Artist: "Cannonball Adderley"},
		testutil.MockWant{ID: 15, Title: "Maiden Voyage", Artist: "Herbie Hancock"},
	)
	mock.SetListings(11,
		testutil.MockListing{ID: 901, Seller: "crate", Price: "18.50", Condition: "Very Good Plus (VG+)", Location: "Germany", Rating: "99.7", RatingCount: 312},
		testutil.MockListing{ID: 902, Seller: "bins", Price: "24", Condition: "Near Mint (NM or M-)", Location: "United States"},
	)

	tracker := ratelimit.NewTracker(nil, zerolog.Nop())
	c := newMarketplaceClient(t, mock, tracker)

	t.Run("want list across pages", func(t *testing.T) {
		items, err := c.GetWantList(context.Background(), "digger")
		if err != nil {
			t.Fatalf("GetWantList() error = %v", err)
		}
		if len(items) != 5 {
			t.Fatalf("len(items) = %d, want 5", len(items))
		}
		for i, item := range items {
			if item.Position != i {
				t.Errorf("items[%d].Position = %d", i, item.Position)
			}
		}
		if items[0].Artist != "Miles Davis" || items[0].Year != 1959 {
			t.Errorf("items[0] = %+v", items[0])
		}
	})

	t.Run("listings", func(t *testing.T) {
		raw, err := c.GetListings(context.Background(), 11)
		if err != nil {
			t.Fatalf("GetListings() error = %v", err)
		}
		if len(raw) != 2 {
			t.Fatalf("len(raw) = %d, want 2", len(raw))
		}
		if raw[0].SellerID != "crate" || raw[0].Price.String() != "18.5" {
			t.Errorf("raw[0] = %+v", raw[0])
		}
		if raw[0].SellerRating == nil || *raw[0].SellerRating != 99.7 {
			t.Errorf("raw[0].SellerRating = %v, want 99.7", raw[0].SellerRating)
		}
		if raw[1].SellerRating != nil {
			t.Errorf("raw[1].SellerRating = %v, want absent", *raw[1].SellerRating)
		}
	})

	t.Run("throttled listings", func(t *testing.T) {
		mock.ThrottleListings(12, 1)
		_, err := c.GetListings(context.Background(), 12)
		if !errors.Is(err, market.ErrThrottled) {
			t.Fatalf("error = %v, want ErrThrottled", err)
		}
		raw, err := c.GetListings(context.Background(), 12)
		if err != nil {
			t.Fatalf("second GetListings() error = %v", err)
		}
		if len(raw) != 0 {
			t.Errorf("len(raw) = %d, want 0", len(raw))
		}
	})

	t.Run("private and unknown lists", func(t *testing.T) {
		mock.SetPrivate("hidden")
		if _, err := c.GetWantList(context.Background(), "hidden"); !errors.Is(err, market.ErrForbidden) {
			t.Errorf("private list error = %v, want ErrForbidden", err)
		}
		if _, err := c.GetWantList(context.Background(), "ghost"); !errors.Is(err, market.ErrNotFound) {
			t.Errorf("unknown user error = %v, want ErrNotFound", err)
		}
	})

	t.Run("tracker follows headers", func(t *testing.T) {
		state := tracker.GetState()
		if state.Limit != 60 {
			t.Errorf("state.Limit = %d, want 60", state.Limit)
		}
		if state.Used != mock.GetRequestCount() {
			t.Errorf("state.Used = %d, want %d", state.Used, mock.GetRequestCount())
		}
	})

	if got := mock.LastRequestHeader.Get("User-Agent"); got != "wantlist-test/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
}
