package postgres

import (
	"context"
	"errors"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianshop/reviews-service/internal/domain"
	"github.com/meridianshop/reviews-service/pkg/database"
)

func newTestUserStore(t *testing.T) (*UserStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	return NewUserStore(mock), mock
}

func TestUserStore_Upsert_Success(t *testing.T) {
	store, mock := newTestUserStore(t)
	defer mock.Close()

	u := &domain.User{ID: "user-1", DisplayName: "Dana K."}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.DisplayName).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Upsert(context.Background(), u)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Upsert_ExecError(t *testing.T) {
	store, mock := newTestUserStore(t)
	defer mock.Close()

	u := &domain.User{ID: "user-1", DisplayName: "Dana K."}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.DisplayName).
		WillReturnError(errors.New("connection reset"))

	err := store.Upsert(context.Background(), u)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upsert user")
	assert.NoError(t, mock.ExpectationsWereMet())
}
