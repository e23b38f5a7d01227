package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type sequenceQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// SequenceGenerator hands out gapless per-prefix counters backed by the
// day_sequences table. The upsert increments atomically under row-level
// locking, so concurrent callers never see the same value.
type SequenceGenerator struct {
	pool *pgxpool.Pool
}

func NewSequenceGenerator(pool *pgxpool.Pool) *SequenceGenerator {
	return &SequenceGenerator{pool: pool}
}

func (g *SequenceGenerator) conn(ctx context.Context) sequenceQuerier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return g.pool
}

// Next returns the next counter value for the given prefix.
func (g *SequenceGenerator) Next(ctx context.Context, prefix string) (int, error) {
	var value int
	err := g.conn(ctx).QueryRow(ctx, `
		INSERT INTO day_sequences (prefix, value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET value = day_sequences.value + 1
		RETURNING value`, prefix).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", prefix, err)
	}
	return value, nil
}

// NextNumber returns a formatted document number: kind + yyyymmdd + a
// 4-digit per-day counter, e.g. "B202501020007".
func (g *SequenceGenerator) NextNumber(ctx context.Context, kind string, day time.Time) (string, error) {
	prefix := kind + day.Format("20060102")
	n, err := g.Next(ctx, prefix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, n), nil
}

// NumberGenerator is the interface services depend on so tests can supply a
// deterministic implementation.
type NumberGenerator interface {
	NextNumber(ctx context.Context, kind string, day time.Time) (string, error)
	Next(ctx context.Context, prefix string) (int, error)
}
