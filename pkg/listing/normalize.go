package listing

import (
	"strings"

	"github.com/3faceees/discogs-backend/pkg/market"
)

// Normalize converts raw listings to the domain model, preserving order.
// Records without a seller cannot be attributed and are dropped.
func Normalize(raw []market.RawListing) []market.Listing {
	out := make([]market.Listing, 0, len(raw))
	for _, r := range raw {
		seller := strings.TrimSpace(r.SellerID)
		if seller == "" || r.Price.IsNegative() {
			listingsDroppedTotal.Inc()
			continue
		}

		var rating *float64
		if r.SellerRating != nil {
			v := *r.SellerRating
			rating = &v
		}

		out = append(out, market.Listing{
			ID:                strings.TrimSpace(r.ID),
			SellerID:          seller,
			Price:             r.Price,
			Currency:          strings.ToUpper(strings.TrimSpace(r.Currency)),
			Condition:         market.ParseCondition(r.Condition),
			SleeveCondition:   market.ParseCondition(r.SleeveCondition),
			SellerLocation:    strings.TrimSpace(r.SellerLocation),
			SellerRating:      rating,
			SellerRatingCount: r.SellerRatingCount,
			ShipsFrom:         strings.TrimSpace(r.ShipsFrom),
			ReferenceURI:      strings.TrimSpace(r.URI),
			Comment:           strings.TrimSpace(r.Comment),
		})
	}
	return out
}
