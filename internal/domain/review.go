package domain

import (
	"time"
)

// ReviewStatus is the lifecycle state of a review. A review starts active and
// can only ever move to retracted; retracted reviews are kept forever for
// audit history and are excluded from listings and rating aggregation.
type ReviewStatus string

const (
	ReviewStatusActive    ReviewStatus = "active"
	ReviewStatusRetracted ReviewStatus = "retracted"
)

// Grade bounds for a review. Enforced at write time; no stored review may
// carry a grade outside this range.
const (
	MinGrade = 1
	MaxGrade = 5
)

// Review represents a single product review submitted by a user. Reviews are
// immutable after creation except for the one-way active -> retracted
// transition. A user may submit multiple reviews for the same product over
// time; no uniqueness is enforced.
type Review struct {
	ID          int64        `json:"id"`
	ProductID   string       `json:"product_id"`
	AuthorID    string       `json:"author_id"`
	Grade       int          `json:"grade"`
	Comment     string       `json:"comment,omitempty"`
	SubmittedOn time.Time    `json:"submitted_on"`
	Status      ReviewStatus `json:"status"`
}

// IsActive reports whether the review counts toward the product rating and
// appears in listings.
func (r *Review) IsActive() bool {
	return r.Status == ReviewStatusActive
}

// ValidGrade reports whether g is inside the allowed [MinGrade, MaxGrade] range.
func ValidGrade(g int) bool {
	return g >= MinGrade && g <= MaxGrade
}

// ReviewWithAuthor is a review joined with the author's public identity for
// per-product listings.
type ReviewWithAuthor struct {
	Review
	AuthorName string `json:"author_name"`
}
