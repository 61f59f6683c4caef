package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskplan-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// It receives a context carrying the transaction, and the transaction itself.
// The transaction is committed if the function returns nil, or rolled back if it returns an error.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// Transactor supplies an atomic multi-write scope. Implementations are
// reentrant: a call made while a scope is active in ctx joins that scope.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type txContextKey struct{}

// WithTx returns a context carrying tx as the active transaction.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext returns the active transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// RunInTransaction executes the given function within a database transaction.
// If ctx already carries a transaction, fn runs inline in that transaction and
// the outermost caller remains responsible for commit and rollback.
// Otherwise a new transaction is started, placed in the context passed to fn,
// rolled back when fn returns an error or panics, and committed otherwise.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContext(ctx)

	if tx, ok := TxFromContext(ctx); ok {
		log.Debug("joining active transaction")
		return fn(ctx, tx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			txErr := tx.Rollback()
			if txErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", txErr.Error()),
					slog.Any("panic", p))
			} else {
				log.Error("rolled back transaction after panic",
					slog.Any("panic", p))
			}
			// ALLOW-PANIC: Propagating caught panic from transaction
			panic(p)
		}
	}()

	err = fn(WithTx(ctx, tx), tx)
	if err != nil {
		rollbackErr := tx.Rollback()
		if rollbackErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rollbackErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf(
				"error rolling back transaction: %v (original error: %w)",
				rollbackErr,
				err,
			)
		}
		log.Debug("rolled back transaction due to error",
			slog.String("error", err.Error()))
		return err
	}

	err = tx.Commit()
	if err != nil {
		log.Error("failed to commit transaction",
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: failed to commit transaction: %v", ErrTransactionFailed, err)
	}

	log.Debug("transaction committed successfully")
	return nil
}

// SQLTransactor implements Transactor on top of a *sql.DB.
type SQLTransactor struct {
	db *sql.DB
}

// NewSQLTransactor creates a Transactor backed by db.
func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

// RunInTransaction implements Transactor.RunInTransaction.
func (t *SQLTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return RunInTransaction(ctx, t.db, func(ctx context.Context, _ *sql.Tx) error {
		return fn(ctx)
	})
}
