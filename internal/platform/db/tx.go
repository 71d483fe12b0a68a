package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// maxTxAttempts bounds how often a unit of work is replayed after a
// serialization failure or deadlock.
const maxTxAttempts = 3

// TxStarter begins transactions. *pgxpool.Pool satisfies it.
type TxStarter interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx executes fn inside a RepeatableRead transaction. The transaction is
// rolled back when fn returns an error and committed otherwise. When Postgres
// aborts it with a serialization failure or deadlock, fn runs again on a fresh
// transaction, so fn must only mutate state through tx.
func WithTx(ctx context.Context, pool TxStarter, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runTx(ctx, pool, fn)
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func runTx(ctx context.Context, pool TxStarter, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
