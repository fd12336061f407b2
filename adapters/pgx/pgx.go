// Package pgx is the PostgreSQL storage adapter. See schema.sql for
// the expected tables; uniqueness and consume-once semantics ride on
// the unique indexes and conditional updates there.
package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lborres/tanod/core"
)

// Adapter implements core.AuthStorage over a pgx connection pool.
type Adapter struct {
	pool *pgxpool.Pool
}

var _ core.AuthStorage = (*Adapter)(nil)

func New(pool *pgxpool.Pool) *Adapter {
	return &Adapter{pool: pool}
}

const uniqueViolation = "23505"

// mapError folds driver errors into the core taxonomy. Timeouts and
// cancellations surface as retryable ErrUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return core.ErrMethodExists
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return core.ErrUnavailable
	}

	return err
}
