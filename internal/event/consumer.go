package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/internal/repository"
	pkgkafka "github.com/meridianshop/reviews-service/pkg/kafka"
)

// Kafka topic constants for catalog and identity events consumed to maintain
// the local replicas.
const (
	TopicProductCreated = "shop.product.created"
	TopicProductUpdated = "shop.product.updated"
	TopicProductDeleted = "shop.product.deleted"
	TopicUserRegistered = "shop.user.registered"
	TopicUserUpdated    = "shop.user.updated"
)

// ProductEventData represents the payload from product catalog events.
type ProductEventData struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Status string `json:"status"`
}

// ProductDeletedData represents the payload from a product.deleted event.
type ProductDeletedData struct {
	ID string `json:"id"`
}

// UserEventData represents the payload from user identity events.
type UserEventData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Consumer applies catalog and identity events to the local replica tables.
// Review reads and the rating recompute never leave the local database; the
// replicas are what make that possible.
type Consumer struct {
	products repository.ProductRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewConsumer creates a new event consumer for the reviews service.
func NewConsumer(products repository.ProductRepository, users repository.UserRepository, logger *slog.Logger) *Consumer {
	return &Consumer{
		products: products,
		users:    users,
		logger:   logger,
	}
}

// Handle processes a Kafka event based on its type.
func (c *Consumer) Handle(ctx context.Context, event *pkgkafka.Event) error {
	switch event.EventType {
	case TopicProductCreated, TopicProductUpdated:
		return c.handleProductUpserted(ctx, event)
	case TopicProductDeleted:
		return c.handleProductDeleted(ctx, event)
	case TopicUserRegistered, TopicUserUpdated:
		return c.handleUserUpserted(ctx, event)
	default:
		c.logger.WarnContext(ctx, "unknown event type received",
			slog.String("event_type", event.EventType),
			slog.String("event_id", event.EventID),
		)
		return nil
	}
}

// handleProductUpserted refreshes the product replica row. The rating column
// is owned by the rating recompute and never written here.
func (c *Consumer) handleProductUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}

	status := domain.ProductStatus(data.Status)
	if status != domain.ProductStatusActive && status != domain.ProductStatusArchived {
		status = domain.ProductStatusActive
	}

	product := &domain.Product{
		ID:     data.ID,
		Name:   data.Name,
		Slug:   data.Slug,
		Status: status,
	}

	if err := c.products.Upsert(ctx, product); err != nil {
		return fmt.Errorf("upsert product replica: %w", err)
	}

	c.logger.InfoContext(ctx, "refreshed product replica",
		slog.String("product_id", data.ID),
		slog.String("slug", data.Slug),
	)

	return nil
}

// handleProductDeleted archives the replica row. Reviews for the product stay
// readable; the product just stops accepting new ones.
func (c *Consumer) handleProductDeleted(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductDeletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal product.deleted data: %w", err)
	}

	if err := c.products.Archive(ctx, data.ID); err != nil {
		return fmt.Errorf("archive product replica: %w", err)
	}

	c.logger.InfoContext(ctx, "archived product replica",
		slog.String("product_id", data.ID),
	)

	return nil
}

// handleUserUpserted refreshes the user identity replica row.
func (c *Consumer) handleUserUpserted(ctx context.Context, event *pkgkafka.Event) error {
	var data UserEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s data: %w", event.EventType, err)
	}

	user := &domain.User{
		ID:          data.ID,
		DisplayName: data.Name,
	}

	if err := c.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("upsert user replica: %w", err)
	}

	c.logger.InfoContext(ctx, "refreshed user replica",
		slog.String("user_id", data.ID),
	)

	return nil
}
