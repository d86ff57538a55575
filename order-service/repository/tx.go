package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// withTx runs fn in a transaction that is committed only if fn succeeds. A
// failed rollback is joined into the returned error.
func withTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (_ T, txErr error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("db.BeginTx: %w", err)
	}

	defer func() {
		if txErr != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}

	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("tx.Commit: %w", err)
	}
	return result, nil
}
