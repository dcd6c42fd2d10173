package repository

import (
	"context"

	"github.com/meridianshop/reviews-service/internal/domain"
)

// ReviewRepository defines the persistence operations for the review lifecycle.
// The mutating operations (Create, Retract) run the review change and the
// product rating recompute inside a single transaction and return the freshly
// persisted rating alongside the review.
type ReviewRepository interface {
	// Create inserts a new active review and recomputes the product rating
	// atomically. Fails with a not-found error if the product row is missing.
	Create(ctx context.Context, review *domain.Review) (*domain.Review, float64, error)

	// Retract flips an active review to retracted and recomputes the product
	// rating atomically. Fails with a not-found error if no active review has
	// the given id (including reviews already retracted).
	Retract(ctx context.Context, id int64) (*domain.Review, float64, error)

	// ListActive returns every active review, in insertion order.
	ListActive(ctx context.Context) ([]domain.Review, error)

	// ListActiveByProduct returns up to limit active reviews for one product,
	// joined with the author's display name, newest first (ties broken by id
	// descending). Returns an empty slice when the product has no active
	// reviews.
	ListActiveByProduct(ctx context.Context, productID string, limit int) ([]domain.ReviewWithAuthor, error)
}

// ProductRepository defines persistence operations on the product replica.
type ProductRepository interface {
	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)

	// Upsert creates or refreshes a replica row from a catalog event. The
	// rating column is never touched; it is owned by the rating recompute.
	Upsert(ctx context.Context, product *domain.Product) error

	// Archive marks a product as no longer accepting reviews.
	Archive(ctx context.Context, id string) error
}

// UserRepository defines persistence operations on the user identity replica.
type UserRepository interface {
	// Upsert creates or refreshes a user's public identity.
	Upsert(ctx context.Context, user *domain.User) error
}
