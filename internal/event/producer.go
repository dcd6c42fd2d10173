package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/meridianshop/reviews-service/internal/domain"
	pkgkafka "github.com/meridianshop/reviews-service/pkg/kafka"
)

// Kafka topic constants for events published by the reviews service.
const (
	TopicReviewCreated   = "shop.review.created"
	TopicReviewRetracted = "shop.review.retracted"
	TopicRatingUpdated   = "shop.product.rating_updated"
)

// Aggregate type constants.
const (
	AggregateTypeReview  = "review"
	AggregateTypeProduct = "product"
)

// Source identifier for events originating from the reviews service.
const SourceReviewsService = "reviews-service"

// Dates on the wire use ISO 8601 calendar dates, no time component.
const dateLayout = "2006-01-02"

// ReviewEventData is the payload for review.created and review.retracted events.
type ReviewEventData struct {
	ID          int64  `json:"id"`
	ProductID   string `json:"product_id"`
	AuthorID    string `json:"author_id"`
	Grade       int    `json:"grade"`
	Comment     string `json:"comment,omitempty"`
	SubmittedOn string `json:"submitted_on"`
	Status      string `json:"status"`
}

// RatingUpdatedData is the payload for a product.rating_updated event.
type RatingUpdatedData struct {
	ProductID string  `json:"product_id"`
	Rating    float64 `json:"rating"`
}

// Producer publishes review domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the reviews service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func reviewData(review *domain.Review) ReviewEventData {
	return ReviewEventData{
		ID:          review.ID,
		ProductID:   review.ProductID,
		AuthorID:    review.AuthorID,
		Grade:       review.Grade,
		Comment:     review.Comment,
		SubmittedOn: review.SubmittedOn.Format(dateLayout),
		Status:      string(review.Status),
	}
}

// PublishReviewCreated publishes a review.created event.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	event, err := pkgkafka.NewEvent(TopicReviewCreated, strconv.FormatInt(review.ID, 10),
		AggregateTypeReview, SourceReviewsService, reviewData(review))
	if err != nil {
		return fmt.Errorf("create review.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewCreated, event); err != nil {
		return fmt.Errorf("publish review.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.created event",
		slog.Int64("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)

	return nil
}

// PublishReviewRetracted publishes a review.retracted event.
func (p *Producer) PublishReviewRetracted(ctx context.Context, review *domain.Review) error {
	event, err := pkgkafka.NewEvent(TopicReviewRetracted, strconv.FormatInt(review.ID, 10),
		AggregateTypeReview, SourceReviewsService, reviewData(review))
	if err != nil {
		return fmt.Errorf("create review.retracted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewRetracted, event); err != nil {
		return fmt.Errorf("publish review.retracted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.retracted event",
		slog.Int64("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)

	return nil
}

// PublishRatingUpdated publishes a product.rating_updated event carrying the
// freshly persisted rating.
func (p *Producer) PublishRatingUpdated(ctx context.Context, productID string, rating float64) error {
	data := RatingUpdatedData{ProductID: productID, Rating: rating}

	event, err := pkgkafka.NewEvent(TopicRatingUpdated, productID,
		AggregateTypeProduct, SourceReviewsService, data)
	if err != nil {
		return fmt.Errorf("create product.rating_updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRatingUpdated, event); err != nil {
		return fmt.Errorf("publish product.rating_updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.rating_updated event",
		slog.String("product_id", productID),
		slog.Float64("rating", rating),
	)

	return nil
}
