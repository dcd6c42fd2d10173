package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/pkg/database"
	apperrors "github.com/meridianshop/reviews-service/pkg/errors"
)

// ReviewStore implements review persistence using PostgreSQL. Both mutating
// operations follow the same protocol: lock the product row, apply the review
// change, recompute the rating, commit. The product row lock serializes
// concurrent writers per product; writers on different products do not
// contend.
type ReviewStore struct {
	db         database.DBTX
	aggregator *RatingAggregator
}

// NewReviewStore creates a new PostgreSQL-backed review store.
func NewReviewStore(db database.DBTX, aggregator *RatingAggregator) *ReviewStore {
	return &ReviewStore{db: db, aggregator: aggregator}
}

const lockProductQuery = `
		SELECT id FROM products WHERE id = $1 FOR UPDATE`

const insertReviewQuery = `
		INSERT INTO reviews (product_id, author_id, grade, comment, submitted_on, status)
		VALUES ($1, $2, $3, $4, CURRENT_DATE, 'active')
		RETURNING id, submitted_on`

// Create inserts a new active review dated today and recomputes the product
// rating in the same transaction.
func (s *ReviewStore) Create(ctx context.Context, review *domain.Review) (*domain.Review, float64, error) {
	ctx, end := database.TraceQuery(ctx, "CreateReview", insertReviewQuery)
	var opErr error
	defer func() { end(opErr) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		opErr = fmt.Errorf("begin transaction: %w", err)
		return nil, 0, opErr
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var productID string
	if err := tx.QueryRow(ctx, lockProductQuery, review.ProductID).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			opErr = apperrors.NotFound("product", review.ProductID)
			return nil, 0, opErr
		}
		opErr = fmt.Errorf("lock product row: %w", err)
		return nil, 0, opErr
	}

	created := *review
	created.Status = domain.ReviewStatusActive
	if err := tx.QueryRow(ctx, insertReviewQuery,
		review.ProductID,
		review.AuthorID,
		review.Grade,
		review.Comment,
	).Scan(&created.ID, &created.SubmittedOn); err != nil {
		opErr = fmt.Errorf("insert review: %w", err)
		return nil, 0, opErr
	}

	rating, err := s.aggregator.Recompute(ctx, tx, review.ProductID)
	if err != nil {
		opErr = fmt.Errorf("recompute rating: %w", err)
		return nil, 0, opErr
	}

	if err := tx.Commit(ctx); err != nil {
		opErr = fmt.Errorf("commit transaction: %w", err)
		return nil, 0, opErr
	}

	return &created, rating, nil
}

const activeReviewProductQuery = `
		SELECT product_id FROM reviews WHERE id = $1 AND status = 'active'`

const retractReviewQuery = `
		UPDATE reviews
		SET status = 'retracted'
		WHERE id = $1 AND status = 'active'
		RETURNING product_id, author_id, grade, comment, submitted_on`

// Retract flips an active review to retracted and recomputes the product
// rating in the same transaction. A review that does not exist, or was
// already retracted, yields a not-found error; the "active" predicate is the
// sole existence check.
func (s *ReviewStore) Retract(ctx context.Context, id int64) (*domain.Review, float64, error) {
	ctx, end := database.TraceQuery(ctx, "RetractReview", retractReviewQuery)
	var opErr error
	defer func() { end(opErr) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		opErr = fmt.Errorf("begin transaction: %w", err)
		return nil, 0, opErr
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var productID string
	if err := tx.QueryRow(ctx, activeReviewProductQuery, id).Scan(&productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			opErr = apperrors.NotFound("review", strconv.FormatInt(id, 10))
			return nil, 0, opErr
		}
		opErr = fmt.Errorf("find active review: %w", err)
		return nil, 0, opErr
	}

	if err := tx.QueryRow(ctx, lockProductQuery, productID).Scan(&productID); err != nil {
		opErr = fmt.Errorf("lock product row: %w", err)
		return nil, 0, opErr
	}

	retracted := domain.Review{ID: id, Status: domain.ReviewStatusRetracted}
	if err := tx.QueryRow(ctx, retractReviewQuery, id).Scan(
		&retracted.ProductID,
		&retracted.AuthorID,
		&retracted.Grade,
		&retracted.Comment,
		&retracted.SubmittedOn,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race with a concurrent retract after the initial lookup.
			opErr = apperrors.NotFound("review", strconv.FormatInt(id, 10))
			return nil, 0, opErr
		}
		opErr = fmt.Errorf("retract review: %w", err)
		return nil, 0, opErr
	}

	rating, err := s.aggregator.Recompute(ctx, tx, retracted.ProductID)
	if err != nil {
		opErr = fmt.Errorf("recompute rating: %w", err)
		return nil, 0, opErr
	}

	if err := tx.Commit(ctx); err != nil {
		opErr = fmt.Errorf("commit transaction: %w", err)
		return nil, 0, opErr
	}

	return &retracted, rating, nil
}

const listActiveQuery = `
		SELECT id, product_id, author_id, grade, comment, submitted_on, status
		FROM reviews
		WHERE status = 'active'
		ORDER BY id`

// ListActive returns every active review in insertion order.
func (s *ReviewStore) ListActive(ctx context.Context) ([]domain.Review, error) {
	ctx, end := database.TraceQuery(ctx, "ListActiveReviews", listActiveQuery)
	var opErr error
	defer func() { end(opErr) }()

	rows, err := s.db.Query(ctx, listActiveQuery)
	if err != nil {
		opErr = fmt.Errorf("list active reviews: %w", err)
		return nil, opErr
	}
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.AuthorID,
			&rv.Grade,
			&rv.Comment,
			&rv.SubmittedOn,
			&rv.Status,
		); err != nil {
			opErr = fmt.Errorf("scan review row: %w", err)
			return nil, opErr
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		opErr = fmt.Errorf("iterate review rows: %w", err)
		return nil, opErr
	}

	return reviews, nil
}

const listByProductQuery = `
		SELECT r.id, r.product_id, r.author_id, r.grade, r.comment, r.submitted_on, r.status,
		       COALESCE(u.display_name, '') AS author_name
		FROM reviews r
		LEFT JOIN users u ON u.id = r.author_id
		WHERE r.product_id = $1 AND r.status = 'active'
		ORDER BY r.submitted_on DESC, r.id DESC
		LIMIT $2`

// ListActiveByProduct returns up to limit active reviews for one product,
// newest first. Reviews submitted on the same date are ordered by id
// descending, so the most recently created comes first.
func (s *ReviewStore) ListActiveByProduct(ctx context.Context, productID string, limit int) ([]domain.ReviewWithAuthor, error) {
	ctx, end := database.TraceQuery(ctx, "ListProductReviews", listByProductQuery)
	var opErr error
	defer func() { end(opErr) }()

	rows, err := s.db.Query(ctx, listByProductQuery, productID, limit)
	if err != nil {
		opErr = fmt.Errorf("list product reviews: %w", err)
		return nil, opErr
	}
	defer rows.Close()

	reviews := []domain.ReviewWithAuthor{}
	for rows.Next() {
		var rv domain.ReviewWithAuthor
		if err := rows.Scan(
			&rv.ID,
			&rv.ProductID,
			&rv.AuthorID,
			&rv.Grade,
			&rv.Comment,
			&rv.SubmittedOn,
			&rv.Status,
			&rv.AuthorName,
		); err != nil {
			opErr = fmt.Errorf("scan review row: %w", err)
			return nil, opErr
		}
		reviews = append(reviews, rv)
	}

	if err := rows.Err(); err != nil {
		opErr = fmt.Errorf("iterate review rows: %w", err)
		return nil, opErr
	}

	return reviews, nil
}
