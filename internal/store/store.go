// Package store is the relational persistence collaborator: plain keyed
// reads, conditional updates, and the single materialization transaction
// that commits a stock decrement together with an order insert.
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStockConflict is reported when the guarded stock decrement matches no
// row, meaning stock already reached zero by the time the order was
// materialized.
var ErrStockConflict = errors.New("stock decrement guard failed")

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a connection pool for the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
