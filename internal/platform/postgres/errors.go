package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// PostgreSQL error codes
const (
	uniqueViolationCode      = "23505"
	foreignKeyViolationCode  = "23503"
	checkViolationCode       = "23514"
	notNullViolationCode     = "23502"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
)

// MapError maps a database error to a store error, wrapping the original
// so that it stays available to errors.As.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolationCode:
		return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
	case foreignKeyViolationCode:
		return fmt.Errorf("%w: foreign key violation (%s): %w", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case checkViolationCode:
		return fmt.Errorf("%w: check constraint violation (%s): %w", store.ErrInvalidEntity, pgErr.ConstraintName, err)
	case notNullViolationCode:
		return fmt.Errorf("%w: not null violation (%s): %w", store.ErrInvalidEntity, pgErr.ColumnName, err)
	case serializationFailureCode, deadlockDetectedCode:
		return fmt.Errorf("%w: concurrent update conflict: %w", store.ErrTransactionFailed, err)
	}
	return err
}

// IsUniqueViolation checks if the given error is a PostgreSQL unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// CheckRowsAffected returns store.ErrNotFound when result touched no rows.
func CheckRowsAffected(result sql.Result, entityName string) error {
	if result == nil {
		return fmt.Errorf("nil result provided to CheckRowsAffected")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if entityName == "" {
			return store.ErrNotFound
		}
		return fmt.Errorf("%w: %s not found", store.ErrNotFound, entityName)
	}
	return nil
}

// MapUniqueViolation maps a unique violation on constraintName to specificError.
// Violations of other constraints map to store.ErrDuplicate, and errors that
// are not unique violations are returned unchanged.
func MapUniqueViolation(err error, entityName, constraintName string, specificError error) error {
	if !IsUniqueViolation(err) {
		return err
	}

	var pgErr *pgconn.PgError
	errors.As(err, &pgErr)
	if specificError != nil && (constraintName == "" || pgErr.ConstraintName == constraintName) {
		return fmt.Errorf("%w: %w", specificError, err)
	}

	msg := "duplicate entry"
	if entityName != "" {
		msg = fmt.Sprintf("%s already exists", entityName)
	}
	return fmt.Errorf("%w: %s: %w", store.ErrDuplicate, msg, err)
}
