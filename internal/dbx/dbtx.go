// Package dbx holds the database helpers shared by repositories and
// services: the DBTX handle both *sql.DB and *sql.Tx satisfy, transaction
// scoping and Postgres error classification.
package dbx

import (
	"context"
	"database/sql"
)

// MaxTxAttempts bounds how often WithTx runs a transaction that keeps
// failing with a retryable error.
const MaxTxAttempts = 3

// DBTX is the subset of database/sql used by repositories.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back otherwise; a panic rolls back and is rethrown. When the
// transaction fails with a serialization failure or deadlock the whole of fn
// is run again in a fresh transaction, up to MaxTxAttempts times, so fn must
// not have side effects outside tx.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = runTx(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) || attempt >= MaxTxAttempts || ctx.Err() != nil {
			return err
		}
	}
}

func runTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}
