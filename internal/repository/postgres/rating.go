package postgres

import (
	"context"
	"fmt"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/pkg/database"
)

// RatingAggregator recomputes a product's displayed rating from its active
// reviews. It always runs inside the transaction of the review mutation that
// triggered it, so a committed review change is never visible with a stale
// rating.
type RatingAggregator struct{}

// NewRatingAggregator creates a rating aggregator.
func NewRatingAggregator() *RatingAggregator {
	return &RatingAggregator{}
}

const avgGradeQuery = `
		SELECT COALESCE(AVG(grade)::float8, 0)
		FROM reviews
		WHERE product_id = $1 AND status = 'active'`

const setRatingQuery = `
		UPDATE products
		SET rating = $2, updated_at = NOW()
		WHERE id = $1`

// Recompute calculates the mean grade over the product's active reviews,
// rounds it to one decimal place (half away from zero), and persists it into
// the product row. A product with no active reviews gets rating 0. The
// supplied Querier is expected to be the transaction of the triggering
// mutation, holding the product row lock.
func (a *RatingAggregator) Recompute(ctx context.Context, q database.Querier, productID string) (float64, error) {
	var mean float64
	if err := q.QueryRow(ctx, avgGradeQuery, productID).Scan(&mean); err != nil {
		return 0, fmt.Errorf("average grade for product %s: %w", productID, err)
	}

	rating := domain.RoundRating(mean)

	if _, err := q.Exec(ctx, setRatingQuery, productID, rating); err != nil {
		return 0, fmt.Errorf("set rating for product %s: %w", productID, err)
	}

	return rating, nil
}
