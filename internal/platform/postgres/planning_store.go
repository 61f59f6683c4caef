package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

const planningColumns = `
	id, date, user_id, flows, organization_id, created_user, modified_user, created_at, updated_at`

// planningUserDateConstraint enforces one planning per user and day.
const planningUserDateConstraint = "task_plannings_user_date_key"

// PostgresPlanningStore implements the store.PlanningStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPlanningStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresPlanningStore creates a new PostgreSQL implementation of the PlanningStore interface.
func NewPostgresPlanningStore(db *sql.DB, logger *slog.Logger) *PostgresPlanningStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPlanningStore{
		db:     db,
		logger: logger.With(slog.String("component", "planning_store")),
	}
}

// Ensure PostgresPlanningStore implements store.PlanningStore interface
var _ store.PlanningStore = (*PostgresPlanningStore)(nil)

// Create implements store.PlanningStore.Create
func (s *PostgresPlanningStore) Create(ctx context.Context, planning *domain.TaskPlanning) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := planning.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO task_plannings (` + planningColumns + `)
		VALUES ($1, $2, $3, $4::uuid[], $5, $6, $7, $8, $9)
	`
	_, err := store.Conn(ctx, s.db).ExecContext(ctx, query,
		planning.ID,
		dateOf(planning.Date),
		planning.UserID,
		uuidArray(planning.Flows),
		planning.OrganizationID,
		planning.CreatedUser,
		planning.ModifiedUser,
		planning.CreatedAt,
		planning.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("planning already exists for user and date",
				slog.String("user_id", planning.UserID.String()),
				slog.String("date", domain.DayKey(planning.Date)))
			return MapUniqueViolation(err, "task planning", planningUserDateConstraint, store.ErrPlanningExists)
		}
		log.Error("failed to create task planning",
			slog.String("error", err.Error()),
			slog.String("planning_id", planning.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.PlanningStore.GetByID
func (s *PostgresPlanningStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskPlanning, error) {
	query := `SELECT ` + planningColumns + ` FROM task_plannings WHERE id = $1`
	planning, err := scanPlanning(store.Conn(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPlanningNotFound
		}
		return nil, MapError(err)
	}
	return planning, nil
}

// Update implements store.PlanningStore.Update
func (s *PostgresPlanningStore) Update(ctx context.Context, planning *domain.TaskPlanning) error {
	result, err := store.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE task_plannings SET flows = $2::uuid[], modified_user = $3, updated_at = $4
		WHERE id = $1
	`, planning.ID, uuidArray(planning.Flows), planning.ModifiedUser, planning.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update task planning",
			slog.String("error", err.Error()),
			slog.String("planning_id", planning.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task planning"); err != nil {
		return store.ErrPlanningNotFound
	}
	return nil
}

// FindByUserAndDate implements store.PlanningStore.FindByUserAndDate
func (s *PostgresPlanningStore) FindByUserAndDate(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) (*domain.TaskPlanning, error) {
	query := `SELECT ` + planningColumns + ` FROM task_plannings WHERE user_id = $1 AND date = $2`
	planning, err := scanPlanning(store.Conn(ctx, s.db).QueryRowContext(ctx, query, userID, dateOf(date.UTC())))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPlanningNotFound
		}
		return nil, MapError(err)
	}
	return planning, nil
}

// ListByFlow implements store.PlanningStore.ListByFlow
func (s *PostgresPlanningStore) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskPlanning, error) {
	query := `SELECT ` + planningColumns + ` FROM task_plannings WHERE $1 = ANY(flows) ORDER BY date, user_id`
	rows, err := store.Conn(ctx, s.db).QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var plannings []*domain.TaskPlanning
	for rows.Next() {
		p, err := scanPlanning(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task planning row: %w", err)
		}
		plannings = append(plannings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task planning rows: %w", err)
	}
	return plannings, nil
}

func scanPlanning(row rowScanner) (*domain.TaskPlanning, error) {
	var (
		p     domain.TaskPlanning
		flows []string
	)
	err := row.Scan(
		&p.ID,
		&p.Date,
		&p.UserID,
		typeMap.SQLScanner(&flows),
		&p.OrganizationID,
		&p.CreatedUser,
		&p.ModifiedUser,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Flows, err = parseUUIDs(flows); err != nil {
		return nil, err
	}
	p.Date = dateOf(p.Date)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
