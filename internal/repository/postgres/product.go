package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/pkg/database"
	apperrors "github.com/meridianshop/reviews-service/pkg/errors"
)

// ProductStore implements persistence for the product replica using
// PostgreSQL. Replica rows are written by catalog events; the rating column
// is written only by the rating aggregator.
type ProductStore struct {
	db database.DBTX
}

// NewProductStore creates a new PostgreSQL-backed product store.
func NewProductStore(db database.DBTX) *ProductStore {
	return &ProductStore{db: db}
}

const getProductBySlugQuery = `
		SELECT id, name, slug, status, rating::float8, updated_at
		FROM products
		WHERE slug = $1`

// GetBySlug retrieves a product by its slug.
func (s *ProductStore) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	ctx, end := database.TraceQuery(ctx, "GetProductBySlug", getProductBySlugQuery)
	var opErr error
	defer func() { end(opErr) }()

	var p domain.Product
	err := s.db.QueryRow(ctx, getProductBySlugQuery, slug).Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Status,
		&p.Rating,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			opErr = apperrors.NotFound("product", slug)
			return nil, opErr
		}
		opErr = fmt.Errorf("get product by slug: %w", err)
		return nil, opErr
	}

	return &p, nil
}

const upsertProductQuery = `
		INSERT INTO products (id, name, slug, status, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			status = EXCLUDED.status,
			updated_at = NOW()`

// Upsert creates or refreshes a replica row from a catalog event. The rating
// column is absent from both the insert and the conflict update, so replica
// refreshes can never clobber it.
func (s *ProductStore) Upsert(ctx context.Context, product *domain.Product) error {
	ctx, end := database.TraceQuery(ctx, "UpsertProduct", upsertProductQuery)
	var opErr error
	defer func() { end(opErr) }()

	if _, err := s.db.Exec(ctx, upsertProductQuery,
		product.ID,
		product.Name,
		product.Slug,
		product.Status,
	); err != nil {
		opErr = fmt.Errorf("upsert product: %w", err)
		return opErr
	}

	return nil
}

const archiveProductQuery = `
		UPDATE products SET status = 'archived', updated_at = NOW() WHERE id = $1`

// Archive marks a product as no longer accepting reviews. Existing reviews
// and the current rating are left untouched.
func (s *ProductStore) Archive(ctx context.Context, id string) error {
	ctx, end := database.TraceQuery(ctx, "ArchiveProduct", archiveProductQuery)
	var opErr error
	defer func() { end(opErr) }()

	if _, err := s.db.Exec(ctx, archiveProductQuery, id); err != nil {
		opErr = fmt.Errorf("archive product: %w", err)
		return opErr
	}

	return nil
}
