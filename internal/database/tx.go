package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
	BaseBackoff    time.Duration
}

func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		ReadOnly:       false,
		MaxRetries:     3,
		BaseBackoff:    50 * time.Millisecond,
	}
}

type TxFunc func(tx *sql.Tx) error

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn TxFunc) error {
	_, err := runOnce(ctx, db, opts, fn)
	return err
}

// WithRetry re-runs fn in a fresh transaction while the failure is a serialization
// failure, deadlock or lock-not-available. Any other error is returned immediately.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn TxFunc) error {
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		stage, err := runOnce(ctx, db, opts, fn)
		if err == nil {
			return nil
		}
		if stage == stageBegin || !IsRetryable(err) {
			return err
		}
		if attempt == opts.MaxRetries {
			return fmt.Errorf("max retries (%d) exceeded on %s: %w", opts.MaxRetries, stage, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}

type txStage string

const (
	stageBegin  txStage = "begin"
	stageBody   txStage = "body"
	stageCommit txStage = "commit"
)

func runOnce(ctx context.Context, db *sql.DB, opts TxOptions, fn TxFunc) (txStage, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{
		Isolation: opts.IsolationLevel,
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return stageBegin, fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return stageBody, fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return stageBody, err
	}

	if err := tx.Commit(); err != nil {
		return stageCommit, fmt.Errorf("commit transaction: %w", err)
	}

	return stageCommit, nil
}
