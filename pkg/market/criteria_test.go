package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

func ptrFloat(f float64) *float64 { return &f }

func ptrDecimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCriteria_MinConditionVGPlus(t *testing.T) {
	criteria := Criteria{MinCondition: ConditionVeryGoodPlus}

	for c := ConditionPoor; c <= ConditionMint; c++ {
		got := criteria.Matches(Listing{Condition: c})
		want := c >= ConditionVeryGoodPlus
		if got != want {
			t.Errorf("condition %s: Matches = %v, want %v", c.Abbrev(), got, want)
		}
	}

	// Absent media grade passes even with the filter set.
	if !criteria.Matches(Listing{}) {
		t.Error("listing without a condition should pass when min condition is set")
	}
	// And of course passes without the filter.
	if !(Criteria{}).Matches(Listing{}) {
		t.Error("listing without a condition should pass when min condition is unset")
	}
}

func TestCriteria_MinSleeveCondition(t *testing.T) {
	criteria := Criteria{MinSleeveCondition: ConditionVeryGood}

	if criteria.Matches(Listing{SleeveCondition: ConditionGoodPlus}) {
		t.Error("G+ sleeve should fail a VG minimum")
	}
	if !criteria.Matches(Listing{SleeveCondition: ConditionVeryGood}) {
		t.Error("VG sleeve should pass a VG minimum")
	}
	if !criteria.Matches(Listing{SleeveCondition: ParseCondition("Generic")}) {
		t.Error("ungraded sleeve should pass")
	}
}

func TestCriteria_Region(t *testing.T) {
	tests := []struct {
		name     string
		region   string
		location string
		want     bool
	}{
		{"exact country", "US", "United States", true},
		{"substring in longer text", "US", "Portland, OR, United States", true},
		{"case insensitive", "uk", "LONDON, UNITED KINGDOM", true},
		{"alias match", "UK", "Glasgow, Scotland", true},
		{"eu member", "EU", "Germany", true},
		{"outside region", "EU", "Japan", false},
		{"non-member", "US", "Canada", false},
		{"absent location passes", "US", "", true},
		{"free-form region", "Brazil", "Sao Paulo, Brazil", true},
		{"free-form region mismatch", "Brazil", "Argentina", false},
		{"ireland is eu", "EU", "Dublin, Ireland", true},
		{"northern ireland is not eu", "EU", "Belfast, Northern Ireland", false},
		{"northern ireland is uk", "UK", "Belfast, Northern Ireland", true},
		{"free-form ireland skips northern ireland", "Ireland", "Northern Ireland, United Kingdom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			criteria := Criteria{Region: tt.region}
			if got := criteria.Matches(Listing{SellerLocation: tt.location}); got != tt.want {
				t.Errorf("Region %q vs %q = %v, want %v", tt.region, tt.location, got, tt.want)
			}
		})
	}
}

func TestCriteria_NumericFilters(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		listing  Listing
		want     bool
	}{
		{
			name:     "rating above minimum",
			criteria: Criteria{MinSellerRating: ptrFloat(98)},
			listing:  Listing{SellerRating: ptrFloat(99.5)},
			want:     true,
		},
		{
			name:     "rating equal to minimum",
			criteria: Criteria{MinSellerRating: ptrFloat(98)},
			listing:  Listing{SellerRating: ptrFloat(98)},
			want:     true,
		},
		{
			name:     "rating below minimum",
			criteria: Criteria{MinSellerRating: ptrFloat(98)},
			listing:  Listing{SellerRating: ptrFloat(97.9)},
			want:     false,
		},
		{
			name:     "unrated seller passes",
			criteria: Criteria{MinSellerRating: ptrFloat(98)},
			listing:  Listing{},
			want:     true,
		},
		{
			name:     "price under maximum",
			criteria: Criteria{MaxPrice: ptrDecimal("20")},
			listing:  Listing{Price: decimal.RequireFromString("19.99")},
			want:     true,
		},
		{
			name:     "price at maximum",
			criteria: Criteria{MaxPrice: ptrDecimal("20")},
			listing:  Listing{Price: decimal.RequireFromString("20.00")},
			want:     true,
		},
		{
			name:     "price over maximum",
			criteria: Criteria{MaxPrice: ptrDecimal("20")},
			listing:  Listing{Price: decimal.RequireFromString("20.01")},
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criteria.Matches(tt.listing); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCriteria_Filter(t *testing.T) {
	listings := []Listing{
		{ID: "1", Condition: ConditionMint},
		{ID: "2", Condition: ConditionGood},
		{ID: "3", Condition: ConditionNearMint},
	}

	got := Criteria{MinCondition: ConditionNearMint}.Filter(listings)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("Filter = %+v, want listings 1 and 3 in order", got)
	}

	if all := (Criteria{}).Filter(listings); len(all) != 3 {
		t.Errorf("zero criteria should keep all listings, got %d", len(all))
	}
}
