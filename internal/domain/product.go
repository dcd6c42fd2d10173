package domain

import (
	"math"
	"time"
)

// ProductStatus is the catalog lifecycle state of a product as replicated
// from the catalog service.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusArchived ProductStatus = "archived"
)

// Product is the local replica of a catalog product. Only the fields the
// review flows need are replicated; Rating is the one field owned by this
// service and is never overwritten by catalog events.
type Product struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Slug      string        `json:"slug"`
	Status    ProductStatus `json:"status"`
	Rating    float64       `json:"rating"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsActive reports whether the product accepts new reviews.
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// RoundRating rounds a raw grade mean to one decimal place using
// round-half-away-from-zero. An empty active set yields mean 0, which rounds
// to exactly 0.
func RoundRating(mean float64) float64 {
	return math.Round(mean*10) / 10
}
