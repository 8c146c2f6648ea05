// Package aggregate folds per-item listing results into per-seller
// statistics and ranks sellers by how much of a want list they can fill.
//
// Folds are commutative: the final report does not depend on the order in
// which items complete. Ties in the ranking are broken by first discovery,
// defined as the earliest (want-list position, listing index) at which the
// seller appeared, which is itself independent of completion order.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/3faceees/discogs-backend/pkg/market"
	"github.com/shopspring/decimal"
)

// Config holds aggregation settings.
type Config struct {
	// ShippingPerOrder is the flat per-order shipping estimate.
	ShippingPerOrder decimal.Decimal

	// Currency the report is expressed in.
	Currency string

	// TopN caps RankedSellers. 0 keeps every seller.
	TopN int
}

// DefaultConfig returns the default aggregation settings.
func DefaultConfig() Config {
	return Config{
		ShippingPerOrder: decimal.NewFromInt(5),
		Currency:         "USD",
		TopN:             50,
	}
}

// Match pairs a want-list item with the listing that fills it.
type Match struct {
	Item    market.WantItem `json:"item"`
	Listing market.Listing  `json:"listing"`
}

// SellerAggregate is everything one seller offers from the want list.
type SellerAggregate struct {
	SellerID            string          `json:"seller_id"`
	MatchedItemCount    int             `json:"matched_item_count"`
	Listings            []Match         `json:"listings"`
	CumulativePrice     decimal.Decimal `json:"cumulative_price"`
	AveragePrice        decimal.Decimal `json:"average_price"`
	EstimatedOrderTotal decimal.Decimal `json:"estimated_order_total"`
	Location            string          `json:"location,omitempty"`
	Rating              *float64        `json:"rating,omitempty"`
	RatingCount         int             `json:"rating_count"`
}

// discovery orders sellers by where they were first seen.
type discovery struct {
	position int
	index    int
}

func (d discovery) before(o discovery) bool {
	if d.position != o.position {
		return d.position < o.position
	}
	return d.index < o.index
}

type sellerState struct {
	id        string
	matches   map[int64]Match // by catalog id
	total     decimal.Decimal
	first     discovery
	seq       int // order of first sight, breaks discovery ties
	location  string
	rating    *float64
	ratingCnt int
}

// Aggregator accumulates folds. It is safe for concurrent use.
type Aggregator struct {
	config Config

	mu      sync.Mutex
	sellers map[string]*sellerState
	folds   int
	sighted int
}

// New creates an aggregator.
func New(cfg Config) *Aggregator {
	if cfg.ShippingPerOrder.IsNegative() {
		cfg.ShippingPerOrder = decimal.Zero
	}
	return &Aggregator{
		config:  cfg,
		sellers: make(map[string]*sellerState),
	}
}

// Fold adds the listings found for item. A seller keeps at most one listing
// per catalog item: the cheapest.
func (a *Aggregator) Fold(item market.WantItem, listings []market.Listing) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.folds++
	for idx, l := range listings {
		if l.SellerID == "" {
			continue
		}
		seen := discovery{position: item.Position, index: idx}

		s, ok := a.sellers[l.SellerID]
		if !ok {
			s = &sellerState{
				id:      l.SellerID,
				matches: make(map[int64]Match),
				first:   seen,
				seq:     a.sighted,
			}
			a.sighted++
			s.snapshot(l)
			a.sellers[l.SellerID] = s
		} else if seen.before(s.first) {
			s.first = seen
			s.snapshot(l)
		}

		if prev, dup := s.matches[item.CatalogID]; dup {
			if !l.Price.LessThan(prev.Listing.Price) {
				continue
			}
			s.total = s.total.Sub(prev.Listing.Price)
		}
		s.matches[item.CatalogID] = Match{Item: item, Listing: l}
		s.total = s.total.Add(l.Price)
	}
}

// snapshot captures the seller profile from the discovering listing.
func (s *sellerState) snapshot(l market.Listing) {
	s.location = l.SellerLocation
	s.ratingCnt = l.SellerRatingCount
	s.rating = nil
	if l.SellerRating != nil {
		v := *l.SellerRating
		s.rating = &v
	}
}

// Folds returns how many items were folded.
func (a *Aggregator) Folds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.folds
}

// RunInfo describes the run being reported.
type RunInfo struct {
	Username       string
	TotalWantItems int
	AnalyzedItems  int
	FailedItems    int
	Duration       time.Duration
	Partial        bool
}

// Report is the ranked result of an analysis.
type Report struct {
	Username                  string            `json:"username"`
	TotalWantItems            int               `json:"total_want_items"`
	AnalyzedItemCount         int               `json:"analyzed_item_count"`
	FailedItemCount           int               `json:"failed_item_count"`
	SellerCount               int               `json:"seller_count"`
	RankedSellers             []SellerAggregate `json:"ranked_sellers"`
	TopSeller                 *SellerAggregate  `json:"top_seller,omitempty"`
	EstimatedSavings          decimal.Decimal   `json:"estimated_savings"`
	ShippingPerOrder          decimal.Decimal   `json:"shipping_per_order"`
	Currency                  string            `json:"currency"`
	ProcessingDurationSeconds float64           `json:"processing_duration_seconds"`
	Partial                   bool              `json:"partial"`
	GeneratedAt               time.Time         `json:"generated_at"`
}

// Finalize computes the ranked report from the folds so far. It does not
// reset the aggregator.
func (a *Aggregator) Finalize(info RunInfo) Report {
	a.mu.Lock()
	states := make([]*sellerState, 0, len(a.sellers))
	for _, s := range a.sellers {
		states = append(states, s)
	}
	sellers := make([]SellerAggregate, 0, len(states))
	// Discovery order first, so the stable sort below keeps it for ties.
	sort.Slice(states, func(i, j int) bool {
		if states[i].first != states[j].first {
			return states[i].first.before(states[j].first)
		}
		return states[i].seq < states[j].seq
	})
	for _, s := range states {
		sellers = append(sellers, a.build(s))
	}
	a.mu.Unlock()

	sort.SliceStable(sellers, func(i, j int) bool {
		return sellers[i].MatchedItemCount > sellers[j].MatchedItemCount
	})

	report := Report{
		Username:                  info.Username,
		TotalWantItems:            info.TotalWantItems,
		AnalyzedItemCount:         info.AnalyzedItems,
		FailedItemCount:           info.FailedItems,
		SellerCount:               len(sellers),
		RankedSellers:             sellers,
		EstimatedSavings:          decimal.Zero,
		ShippingPerOrder:          a.config.ShippingPerOrder,
		Currency:                  a.config.Currency,
		ProcessingDurationSeconds: info.Duration.Seconds(),
		Partial:                   info.Partial,
		GeneratedAt:               time.Now().UTC(),
	}

	if len(sellers) > 0 {
		top := sellers[0]
		report.TopSeller = &top
		report.EstimatedSavings = consolidationSavings(info.AnalyzedItems, a.config.ShippingPerOrder)
	}
	if a.config.TopN > 0 && len(report.RankedSellers) > a.config.TopN {
		report.RankedSellers = report.RankedSellers[:a.config.TopN]
	}

	return report
}

// build derives the public aggregate. Caller holds a.mu.
func (a *Aggregator) build(s *sellerState) SellerAggregate {
	matches := make([]Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Item.Position != matches[j].Item.Position {
			return matches[i].Item.Position < matches[j].Item.Position
		}
		return matches[i].Item.CatalogID < matches[j].Item.CatalogID
	})

	count := len(matches)
	average := decimal.Zero
	if count > 0 {
		average = s.total.Div(decimal.NewFromInt(int64(count)))
	}

	var rating *float64
	if s.rating != nil {
		v := *s.rating
		rating = &v
	}

	return SellerAggregate{
		SellerID:            s.id,
		MatchedItemCount:    count,
		Listings:            matches,
		CumulativePrice:     s.total,
		AveragePrice:        average,
		EstimatedOrderTotal: s.total.Add(a.config.ShippingPerOrder),
		Location:            s.location,
		Rating:              rating,
		RatingCount:         s.ratingCnt,
	}
}

// consolidationSavings is the shipping saved by one combined order instead
// of one order per analyzed item. Never negative.
func consolidationSavings(analyzedItems int, shipping decimal.Decimal) decimal.Decimal {
	if analyzedItems <= 1 {
		return decimal.Zero
	}
	return shipping.Mul(decimal.NewFromInt(int64(analyzedItems))).Sub(shipping)
}
