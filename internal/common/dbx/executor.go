// Package dbx holds the thin Postgres plumbing shared by every bounded
// context's repository package: the Executor abstraction and the atomic
// transaction runner. Six contexts share the same shape, so it lives once
// here instead of being duplicated per context.
package dbx

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor abstracts the operations shared by *pgxpool.Pool and pgx.Tx so a
// repository can run either inside or outside an ambient transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Executor = (*pgxpool.Pool)(nil)
	_ Executor = (pgx.Tx)(nil)
)
