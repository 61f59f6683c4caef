package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"

	"github.com/phrazzld/taskplan-api/internal/platform/postgres"
)

// handleMigrations executes a goose migration command against db.
// It's called from run() when the -migrate flag is given.
func handleMigrations(ctx context.Context, db *sql.DB, command string, logger *slog.Logger) error {
	if !slices.Contains(postgres.MigrationCommands, command) {
		return fmt.Errorf("unknown migration command %q (expected one of %v)", command, postgres.MigrationCommands)
	}

	logger.Info("Executing migrations", "command", command)
	if err := postgres.Migrate(ctx, db, command, logger); err != nil {
		return err
	}
	return nil
}
