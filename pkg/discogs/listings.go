package discogs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/shopspring/decimal"
)

type listingsPage struct {
	Pagination pagination     `json:"pagination"`
	Listings   []listingEntry `json:"listings"`
}

type listingEntry struct {
	ID              json.Number `json:"id"`
	Condition       string      `json:"condition"`
	SleeveCondition string      `json:"sleeve_condition"`
	Price           struct {
		Value    decimal.Decimal `json:"value"`
		Currency string          `json:"currency"`
	} `json:"price"`
	Seller struct {
		Username string `json:"username"`
		Location string `json:"location"`
		Stats    struct {
			Rating flexFloat `json:"rating"`
			Total  int       `json:"total"`
		} `json:"stats"`
	} `json:"seller"`
	ShipsFrom string `json:"ships_from"`
	URI       string `json:"uri"`
	Comments  string `json:"comments"`
}

// flexFloat decodes a number that the upstream sends either as a JSON number
// or as a string ("99.8"). Empty and null decode to absent.
type flexFloat struct {
	Value *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		f.Value = nil
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		f.Value = nil
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse rating %q: %w", s, err)
	}
	f.Value = &v
	return nil
}

// GetListings returns the first page of marketplace listings for a catalog
// item, lowest price first. It makes exactly one request and does not gate
// it: the caller acquires the limiter before each attempt.
//
// A 429 surfaces as an error wrapping market.ErrThrottled.
func (c *Client) GetListings(ctx context.Context, catalogID int64) ([]market.RawListing, error) {
	q := url.Values{}
	q.Set("sort", "price")
	q.Set("sort_order", "asc")
	q.Set("per_page", strconv.Itoa(c.config.PerPage))
	if c.config.Currency != "" {
		q.Set("curr_abbr", c.config.Currency)
	}
	rawURL := fmt.Sprintf("%s/marketplace/releases/%d/listings?%s", c.config.BaseURL, catalogID, q.Encode())

	body, err := c.get(ctx, endpointListings, rawURL)
	if err != nil {
		return nil, fmt.Errorf("listings for %d: %w", catalogID, err)
	}

	var lp listingsPage
	if err := json.Unmarshal(body, &lp); err != nil {
		return nil, fmt.Errorf("decode listings for %d: %w: %w", catalogID, market.ErrUnavailable, err)
	}

	out := make([]market.RawListing, 0, len(lp.Listings))
	for _, l := range lp.Listings {
		location := l.Seller.Location
		if location == "" {
			location = l.ShipsFrom
		}
		out = append(out, market.RawListing{
			ID:                l.ID.String(),
			SellerID:          l.Seller.Username,
			Price:             l.Price.Value,
			Currency:          l.Price.Currency,
			Condition:         l.Condition,
			SleeveCondition:   l.SleeveCondition,
			SellerLocation:    location,
			SellerRating:      l.Seller.Stats.Rating.Value,
			SellerRatingCount: l.Seller.Stats.Total,
			ShipsFrom:         l.ShipsFrom,
			URI:               l.URI,
			Comment:           l.Comments,
		})
	}

	c.logger.Debug().
		Int64("catalog_id", catalogID).
		Int("listings", len(out)).
		Msg("Listings fetched")

	return out, nil
}
