package postgres

import (
	"context"
	"fmt"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/pkg/database"
)

// UserStore implements persistence for the user identity replica using
// PostgreSQL.
type UserStore struct {
	db database.DBTX
}

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(db database.DBTX) *UserStore {
	return &UserStore{db: db}
}

const upsertUserQuery = `
		INSERT INTO users (id, display_name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			updated_at = NOW()`

// Upsert creates or refreshes a user's public identity from an identity event.
func (s *UserStore) Upsert(ctx context.Context, user *domain.User) error {
	ctx, end := database.TraceQuery(ctx, "UpsertUser", upsertUserQuery)
	var opErr error
	defer func() { end(opErr) }()

	if _, err := s.db.Exec(ctx, upsertUserQuery, user.ID, user.DisplayName); err != nil {
		opErr = fmt.Errorf("upsert user: %w", err)
		return opErr
	}

	return nil
}
