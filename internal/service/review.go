package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/meridianshop/reviews-service/pkg/errors"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/internal/repository"
)

// Listing defaults for product review pages.
const (
	DefaultReviewLimit = 10
	MaxReviewLimit     = 100
)

// EventPublisher publishes review lifecycle events. Publishing happens after
// the database transaction commits and is best-effort; the caller logs
// failures instead of propagating them.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, review *domain.Review) error
	PublishReviewRetracted(ctx context.Context, review *domain.Review) error
	PublishRatingUpdated(ctx context.Context, productID string, rating float64) error
}

// SubmitReviewInput holds the parameters for submitting a review.
type SubmitReviewInput struct {
	Slug     string
	AuthorID string
	Grade    int
	Comment  string
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	events   EventPublisher
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	events EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		events:   events,
		logger:   logger,
	}
}

// Submit creates a new review for the product identified by slug and returns
// the persisted review. The product must exist and be active; archived
// products keep their reviews readable but accept no new ones.
func (s *ReviewService) Submit(ctx context.Context, input *SubmitReviewInput) (*domain.Review, error) {
	if input.AuthorID == "" {
		return nil, apperrors.InvalidInput("author is required")
	}
	if !domain.ValidGrade(input.Grade) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("grade must be between %d and %d", domain.MinGrade, domain.MaxGrade))
	}

	product, err := s.products.GetBySlug(ctx, input.Slug)
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, apperrors.NotFound("product", input.Slug)
	}

	review := &domain.Review{
		ProductID: product.ID,
		AuthorID:  input.AuthorID,
		Grade:     input.Grade,
		Comment:   input.Comment,
	}

	created, rating, err := s.reviews.Create(ctx, review)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.Int64("review_id", created.ID),
		slog.String("product_id", created.ProductID),
		slog.String("author_id", created.AuthorID),
		slog.Int("grade", created.Grade),
		slog.Float64("rating", rating),
	)

	s.publishReviewCreated(ctx, created, rating)

	return created, nil
}

// ListActive returns every active review across all products.
func (s *ReviewService) ListActive(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.reviews.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active reviews: %w", err)
	}
	return reviews, nil
}

// ListForProduct returns up to limit active reviews for the product
// identified by slug, newest first. Archived products remain listable; only
// an unknown slug is an error.
func (s *ReviewService) ListForProduct(ctx context.Context, slug string, limit int) ([]domain.ReviewWithAuthor, error) {
	if limit <= 0 {
		limit = DefaultReviewLimit
	}
	if limit > MaxReviewLimit {
		limit = MaxReviewLimit
	}

	product, err := s.products.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.ListActiveByProduct(ctx, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list product reviews: %w", err)
	}

	return reviews, nil
}

// Retract soft-deletes a review and returns the retracted record. A review
// that does not exist, or was already retracted, yields a not-found error.
func (s *ReviewService) Retract(ctx context.Context, id int64) (*domain.Review, error) {
	retracted, rating, err := s.reviews.Retract(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review retracted",
		slog.Int64("review_id", retracted.ID),
		slog.String("product_id", retracted.ProductID),
		slog.Float64("rating", rating),
	)

	s.publishReviewRetracted(ctx, retracted, rating)

	return retracted, nil
}

// publishReviewCreated emits review.created and rating_updated events.
// Failures are logged, not returned; the review is already committed.
func (s *ReviewService) publishReviewCreated(ctx context.Context, review *domain.Review, rating float64) {
	if err := s.events.PublishReviewCreated(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.PublishRatingUpdated(ctx, review.ProductID, rating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.rating_updated event",
			slog.String("product_id", review.ProductID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ReviewService) publishReviewRetracted(ctx context.Context, review *domain.Review, rating float64) {
	if err := s.events.PublishReviewRetracted(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.retracted event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.events.PublishRatingUpdated(ctx, review.ProductID, rating); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.rating_updated event",
			slog.String("product_id", review.ProductID),
			slog.String("error", err.Error()),
		)
	}
}
