package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of query methods shared by *pgxpool.Pool, pgx.Tx, and
// the pgxmock pool. Repository code that must run inside a caller-owned
// transaction accepts a Querier instead of a concrete pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBTX extends Querier with the ability to open transactions. Both
// *pgxpool.Pool and pgxmock.PgxPoolIface satisfy it, so repositories built on
// DBTX are testable without a live database.
type DBTX interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}
