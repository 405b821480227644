package repository

import (
    "context"
    "database/sql"
    "log/slog"
    "time"

    "github.com/cockroachdb/errors"
)

const (
    maxTxRetries = 3
    txRetryBase  = 50 * time.Millisecond
)

// WithTx runs fn inside a READ COMMITTED transaction, committing when fn
// returns nil.  Deadlocks and lock wait timeouts restart fn from scratch up
// to maxTxRetries times, so fn must not keep state across calls.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
    for attempt := 0; ; attempt++ {
        err := runTx(ctx, db, fn)
        if err == nil {
            return nil
        }
        if !IsRetryable(err) {
            return err
        }
        if attempt >= maxTxRetries {
            slog.Error("transaction failed after max retries",
                "attempts", attempt+1,
                "error", err.Error())
            return err
        }
        wait := txRetryBase * time.Duration(attempt+1)
        slog.Warn("retrying transaction due to retryable error",
            "attempt", attempt+1,
            "wait_ms", wait.Milliseconds(),
            "error", err.Error())
        select {
        case <-ctx.Done():
            return ctx.Err()
        case <-time.After(wait):
        }
    }
}

func runTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
    tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
    if err != nil {
        return errors.Wrap(err, "begin transaction")
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(tx); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return errors.Wrap(err, "commit transaction")
    }
    committed = true
    return nil
}
