// Package market defines the domain types shared by the want-list analysis
// pipeline: want-list items, marketplace listings, the media condition scale
// and the per-request listing filter criteria.
package market

import (
	"github.com/shopspring/decimal"
)

// WantItem is one entry of a user's want list.
// Identity is CatalogID; items are read-only once fetched.
type WantItem struct {
	CatalogID int64    `json:"catalog_id"`
	Title     string   `json:"title"`
	Artist    string   `json:"artist"`
	Year      int      `json:"year,omitempty"` // 0 when unknown
	Genres    []string `json:"genres,omitempty"`
	Formats   []string `json:"formats,omitempty"`

	// Position is the item's index in the want list as delivered by the source.
	Position int `json:"position"`
}

// RawListing is a listing as delivered by a listing source, before
// normalization. Conditions are the source's free-text grades.
type RawListing struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	Condition         string          `json:"condition,omitempty"`
	SleeveCondition   string          `json:"sleeve_condition,omitempty"`
	SellerLocation    string          `json:"seller_location,omitempty"`
	SellerRating      *float64        `json:"seller_rating,omitempty"`
	SellerRatingCount int             `json:"seller_rating_count,omitempty"`
	ShipsFrom         string          `json:"ships_from,omitempty"`
	URI               string          `json:"uri,omitempty"`
	Comment           string          `json:"comment,omitempty"`
}

// Listing is one seller's normalized offer for one want-list item.
type Listing struct {
	ID                string          `json:"id"`
	SellerID          string          `json:"seller_id"`
	Price             decimal.Decimal `json:"price"`
	Currency          string          `json:"currency"`
	Condition         Condition       `json:"condition"`
	SleeveCondition   Condition       `json:"sleeve_condition"`
	SellerLocation    string          `json:"seller_location,omitempty"`
	SellerRating      *float64        `json:"seller_rating,omitempty"`
	SellerRatingCount int             `json:"seller_rating_count"`
	ShipsFrom         string          `json:"ships_from,omitempty"`
	ReferenceURI      string          `json:"reference_uri,omitempty"`
	Comment           string          `json:"comment,omitempty"`
}
