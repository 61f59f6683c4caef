// Package main implements the entry point for the taskplan API server,
// which generates recurring tasks from task rules and tracks their lifecycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/phrazzld/taskplan-api/internal/config"
	applog "github.com/phrazzld/taskplan-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a database migration command (up, down, reset, status, version) and exit")
	flag.Parse()

	if err := run(context.Background(), *migrateCmd); err != nil {
		log.Fatalf("taskplan-api: %v", err)
	}
}

// run loads configuration, connects to the database and either executes the
// requested migration command or serves the API until shutdown.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := applog.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"horizon_refresh_schedule", cfg.Horizon.RefreshSchedule,
		"horizon_lead_days", cfg.Horizon.RefreshLeadDays,
		"notify_workers", cfg.Notify.WorkerCount)

	db, err := setupAppDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer func() { _ = db.Close() }()
		return handleMigrations(ctx, db, migrateCmd, logger)
	}

	app, err := newApplication(cfg, logger, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
