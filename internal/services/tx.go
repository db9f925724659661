package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sindh/backend/internal/apperr"
	"github.com/sindh/backend/internal/metrics"
	"github.com/sindh/backend/internal/repository"
)

const defaultMaxAttempts = 3

// TxBeginner starts a storage transaction. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// runInTx runs fn as one unit of work. A lost compare-and-swap rolls back and reruns
// fn from fresh reads, up to attempts times, and then surfaces ConflictError. A
// connection fault is retried once before it becomes ServiceUnavailable.
func runInTx(ctx context.Context, db TxBeginner, attempts int, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	conflicts, faults := 0, 0
	for {
		err := inTx(ctx, db, fn)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperr.ErrVersionConflict):
			metrics.RecordVersionConflict()
			conflicts++
			if conflicts >= attempts {
				return apperr.Conflict("record changed concurrently, retry the request")
			}
		case repository.IsUnavailable(err):
			faults++
			if faults > 1 {
				return apperr.Unavailable(err)
			}
		default:
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func inTx(ctx context.Context, db TxBeginner, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// readOnce retries an idempotent read a single time on a connection fault.
func readOnce[T any](ctx context.Context, read func(ctx context.Context) (T, error)) (T, error) {
	v, err := read(ctx)
	if err == nil || !repository.IsUnavailable(err) {
		return v, err
	}
	v, err = read(ctx)
	if err != nil && repository.IsUnavailable(err) {
		var zero T
		return zero, apperr.Unavailable(err)
	}
	return v, err
}
