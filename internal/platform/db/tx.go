package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// TxFromContext retrieves the transaction carried by a WithTx call, if any.
// Repositories consult this before falling back to the pool so that
// multi-entity operations see and mutate consistent state.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// Transactor runs fn inside a transaction boundary. Services depend on this
// instead of the pool directly so tests can substitute a passthrough.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTransactor returns a Transactor backed by WithTx on the given pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return WithTx(ctx, pool, fn)
	}
}

// WithTx runs fn inside a database transaction. The transaction is placed in
// the context handed to fn; any error rolls back, otherwise the transaction
// commits. Nested calls reuse the outer transaction.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, DBTxKey, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
