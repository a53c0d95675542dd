package dbx

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AtomicCallback receives a transaction-scoped Executor. Any error returned
// rolls the transaction back.
type AtomicCallback func(ctx context.Context, tx Executor) error

// AtomicExecutor runs a callback inside a single database transaction.
// Services construct their repositories directly from the tx Executor the
// callback receives, since a single attempt-intake use case spans the
// access and outbox contexts at once and a fixed repository bundle can't
// name both up front.
type AtomicExecutor struct {
	pool *pgxpool.Pool
}

// NewAtomicExecutor wraps a connection pool for transactional use.
func NewAtomicExecutor(pool *pgxpool.Pool) *AtomicExecutor {
	return &AtomicExecutor{pool: pool}
}

// Atomic executes fn within a transaction, committing on nil error and
// rolling back otherwise (including on panic, which it re-panics after
// rollback).
func (a *AtomicExecutor) Atomic(ctx context.Context, fn AtomicCallback) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
