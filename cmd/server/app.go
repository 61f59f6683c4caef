package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskplan-api/internal/config"
	"github.com/phrazzld/taskplan-api/internal/events"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/platform/postgres"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/auth"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	ruleStore     store.RuleStore
	taskStore     store.TaskStore
	planningStore store.PlanningStore
	accessStore   store.AccessStore

	jwtService      auth.JWTService
	ruleService     service.RuleService
	taskService     service.TaskService
	statusService   task_status.Service
	planningService service.PlanningService

	horizon    *generation.Horizon
	dispatcher *events.Dispatcher
	scheduler  *horizonScheduler
}

// newApplication creates a new application instance with all dependencies initialized.
// The notification dispatcher is started; the horizon scheduler is only
// started by Run.
func newApplication(cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	app.ruleStore = postgres.NewPostgresRuleStore(db, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.planningStore = postgres.NewPostgresPlanningStore(db, logger)
	accessStore := postgres.NewPostgresAccessStore(db, logger)
	app.accessStore = accessStore

	tx := store.NewSQLTransactor(db)
	guard := service.NewGuard(service.StoreAuthorizer{Access: accessStore}, accessStore)

	generator := generation.NewGenerator(app.taskStore, logger)
	app.horizon = generation.NewHorizon(app.ruleStore, app.taskStore, generator, tx, logger)
	flows := service.NewFlowTaskCoordinator(app.ruleStore, app.taskStore, app.planningStore, generator, tx, logger)

	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.Subscribe(events.TopicTasks, events.NewLogHandler(logger))
	app.dispatcher = events.NewDispatcher(emitter, events.DispatcherConfig{
		WorkerCount: cfg.Notify.WorkerCount,
		QueueSize:   cfg.Notify.QueueSize,
	}, logger)

	app.ruleService = service.NewRuleService(service.RuleServiceDeps{
		Rules:     app.ruleStore,
		Tasks:     app.taskStore,
		Tx:        tx,
		Guard:     guard,
		Generator: generator,
		Horizon:   app.horizon,
		Flows:     flows,
	}, logger)
	app.taskService = service.NewTaskService(app.taskStore, app.ruleStore, tx, guard, app.horizon, logger)
	app.statusService = task_status.NewService(app.taskStore, tx, guard, app.dispatcher, logger)
	app.planningService = service.NewPlanningService(app.planningStore, tx, guard, flows, logger)

	app.scheduler, err = newHorizonScheduler(
		cfg.Horizon.RefreshSchedule,
		cfg.Horizon.RefreshLeadDays,
		app.horizon,
		logger,
	)
	if err != nil {
		return nil, err
	}

	app.dispatcher.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if app.scheduler != nil {
		app.scheduler.Start()
	} else {
		app.logger.Info("Horizon refresh disabled, horizons extend on demand only")
	}

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
// Pending notifications are delivered before the database is closed.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.dispatcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.dispatcher.Stop(ctx); err != nil {
			app.logger.Error("Error draining notification dispatcher", "error", err)
		}
		cancel()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
