package market

import (
	"github.com/shopspring/decimal"
)

// Criteria are the listing filters of one analysis request.
//
// Every filter is null-safe: an unset filter always passes, and a listing
// whose corresponding field is absent also passes. A listing is only
// excluded when both the filter and the field are present and the
// comparison fails.
type Criteria struct {
	MinCondition       Condition        `json:"min_condition,omitempty"`
	MinSleeveCondition Condition        `json:"min_sleeve_condition,omitempty"`
	Region             string           `json:"region,omitempty" validate:"omitempty,region"`
	MinSellerRating    *float64         `json:"min_seller_rating,omitempty" validate:"omitempty,gte=0,lte=100"`
	MaxPrice           *decimal.Decimal `json:"max_price,omitempty"`
}

// Matches reports whether l passes every filter.
func (c Criteria) Matches(l Listing) bool {
	if c.MinCondition.Known() && l.Condition.Known() && !l.Condition.AtLeast(c.MinCondition) {
		return false
	}
	if c.MinSleeveCondition.Known() && l.SleeveCondition.Known() && !l.SleeveCondition.AtLeast(c.MinSleeveCondition) {
		return false
	}
	if c.Region != "" && l.SellerLocation != "" && !InRegion(l.SellerLocation, c.Region) {
		return false
	}
	if c.MinSellerRating != nil && l.SellerRating != nil && *l.SellerRating < *c.MinSellerRating {
		return false
	}
	if c.MaxPrice != nil && l.Price.GreaterThan(*c.MaxPrice) {
		return false
	}
	return true
}

// Filter returns the listings that pass, preserving order.
func (c Criteria) Filter(listings []Listing) []Listing {
	if c.IsZero() {
		return listings
	}
	out := make([]Listing, 0, len(listings))
	for _, l := range listings {
		if c.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

// IsZero reports whether no filter is set.
func (c Criteria) IsZero() bool {
	return !c.MinCondition.Known() &&
		!c.MinSleeveCondition.Known() &&
		c.Region == "" &&
		c.MinSellerRating == nil &&
		c.MaxPrice == nil
}
