package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// PostgresAccessStore implements the store.AccessStore interface
// over the users and user_grants tables.
type PostgresAccessStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresAccessStore creates a new PostgreSQL implementation of the AccessStore interface.
func NewPostgresAccessStore(db *sql.DB, logger *slog.Logger) *PostgresAccessStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccessStore{
		db:     db,
		logger: logger.With(slog.String("component", "access_store")),
	}
}

// Ensure PostgresAccessStore implements store.AccessStore interface
var _ store.AccessStore = (*PostgresAccessStore)(nil)

// OrganizationOf implements store.AccessStore.OrganizationOf
func (s *PostgresAccessStore) OrganizationOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var org uuid.UUID
	err := store.Conn(ctx, s.db).
		QueryRowContext(ctx, `SELECT organization_id FROM users WHERE id = $1`, userID).
		Scan(&org)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, store.ErrUserNotFound
		}
		return uuid.Nil, MapError(err)
	}
	return org, nil
}

// HasGrant implements store.AccessStore.HasGrant
func (s *PostgresAccessStore) HasGrant(ctx context.Context, userID uuid.UUID, resource, grant string) (bool, error) {
	var ok bool
	err := store.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_grants WHERE user_id = $1 AND resource = $2 AND grant_name = $3
		)
	`, userID, resource, grant).Scan(&ok)
	if err != nil {
		return false, MapError(err)
	}
	return ok, nil
}
