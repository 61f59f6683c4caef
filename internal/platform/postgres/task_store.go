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

const taskColumns = `
	id, rule_id, flow_id, status, title, description, remarks, priority, zone,
	expected_start_date, expected_finish_date, duration, actual_start_date,
	last_start_date, actual_duration, actual_finish_date, user_started, user_finished,
	assigned_to, related_flows, is_background_task, modified, organization_id,
	created_user, modified_user, created_at, updated_at`

const insertTaskQuery = `
	INSERT INTO tasks (` + taskColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19::uuid[], $20::uuid[], $21, $22, $23, $24, $25, $26, $27)
`

// ruleFilter matches the rows of TaskFilter; it expects the filter bounds as $1..$3.
const ruleFilter = `
	rule_id = $1
	AND ($2::timestamptz IS NULL OR expected_start_date >= $2)
	AND ($3::timestamptz IS NULL OR expected_start_date < $3)`

// unmodifiedFilter narrows ruleFilter to tasks that may still follow their rule.
const unmodifiedFilter = ruleFilter + `
	AND status = 'new' AND modified = FALSE`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db *sql.DB, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}
	if _, err := store.Conn(ctx, s.db).ExecContext(ctx, insertTaskQuery, taskArgs(task)...); err != nil {
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	return nil
}

// CreateMultiple implements store.TaskStore.CreateMultiple
func (s *PostgresTaskStore) CreateMultiple(ctx context.Context, tasks []*domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			log.Warn("task validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
			return err
		}
	}
	if len(tasks) == 0 {
		return nil
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertTaskQuery)
		if err != nil {
			return MapError(err)
		}
		defer func() { _ = stmt.Close() }()

		for _, task := range tasks {
			if _, err := stmt.ExecContext(ctx, taskArgs(task)...); err != nil {
				log.Error("failed to insert task in batch",
					slog.String("error", err.Error()),
					slog.String("task_id", task.ID.String()))
				return MapError(err)
			}
		}
		log.Debug("tasks created", slog.Int("count", len(tasks)))
		return nil
	})
}

// GetByID implements store.TaskStore.GetByID
func (s *PostgresTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	task, err := scanTask(store.Conn(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get task",
			slog.String("error", err.Error()),
			slog.String("task_id", id.String()))
		return nil, MapError(err)
	}
	return task, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE tasks SET
			rule_id = $2, flow_id = $3, status = $4, title = $5, description = $6,
			remarks = $7, priority = $8, zone = $9, expected_start_date = $10,
			expected_finish_date = $11, duration = $12, actual_start_date = $13,
			last_start_date = $14, actual_duration = $15, actual_finish_date = $16,
			user_started = $17, user_finished = $18, assigned_to = $19::uuid[],
			related_flows = $20::uuid[], is_background_task = $21, modified = $22,
			modified_user = $23, updated_at = $24
		WHERE id = $1
	`
	// The first 22 insert arguments line up with the SET list.
	args := append(taskArgs(task)[:22], task.ModifiedUser, task.UpdatedAt)
	result, err := store.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := store.Conn(ctx, s.db).ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// ListByRule implements store.TaskStore.ListByRule
func (s *PostgresTaskStore) ListByRule(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + ruleFilter + ` ORDER BY expected_start_date, id`
	return s.list(ctx, "list_by_rule", query, filterArgs(filter)...)
}

// FindByRuleAndDate implements store.TaskStore.FindByRuleAndDate
func (s *PostgresTaskStore) FindByRuleAndDate(ctx context.Context, ruleID uuid.UUID, date time.Time) (*domain.Task, error) {
	day := dateOf(date.UTC())
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE rule_id = $1 AND expected_start_date >= $2 AND expected_start_date < $3
		ORDER BY expected_start_date, id
		LIMIT 1
	`
	task, err := scanTask(store.Conn(ctx, s.db).QueryRowContext(ctx, query, ruleID, day, day.AddDate(0, 0, 1)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// UpdateAssignees implements store.TaskStore.UpdateAssignees
func (s *PostgresTaskStore) UpdateAssignees(
	ctx context.Context,
	id uuid.UUID,
	assignees []uuid.UUID,
	modifiedBy uuid.UUID,
) error {
	result, err := store.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE tasks SET assigned_to = $2::uuid[], modified_user = $3, updated_at = NOW() WHERE id = $1`,
		id, uuidArray(assignees), modifiedBy)
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}
	return nil
}

// DeleteUnmodified implements store.TaskStore.DeleteUnmodified
func (s *PostgresTaskStore) DeleteUnmodified(ctx context.Context, filter store.TaskFilter) (int64, error) {
	return s.exec(ctx, "delete_unmodified", `DELETE FROM tasks WHERE `+unmodifiedFilter, filterArgs(filter)...)
}

// PatchUnmodified implements store.TaskStore.PatchUnmodified
func (s *PostgresTaskStore) PatchUnmodified(
	ctx context.Context,
	filter store.TaskFilter,
	fields store.RuleTaskFields,
) (int64, error) {
	if fields.IsEmpty() {
		return 0, nil
	}
	query := `
		UPDATE tasks SET
			title = COALESCE($4::text, title),
			description = COALESCE($5::text, description),
			duration = COALESCE($6::integer, duration),
			expected_finish_date = CASE
				WHEN $6::integer IS NULL THEN expected_finish_date
				ELSE expected_start_date + make_interval(mins => $6::integer)
			END,
			is_background_task = COALESCE($7::boolean, is_background_task),
			updated_at = NOW()
		WHERE ` + unmodifiedFilter
	args := append(filterArgs(filter),
		nullable(fields.Title),
		nullable(fields.Description),
		nullable(fields.Duration),
		nullable(fields.IsBackgroundTask),
	)
	return s.exec(ctx, "patch_unmodified", query, args...)
}

// RescheduleUnmodified implements store.TaskStore.RescheduleUnmodified
func (s *PostgresTaskStore) RescheduleUnmodified(
	ctx context.Context,
	filter store.TaskFilter,
	startTime domain.TimeOfDay,
) (int64, error) {
	query := `
		UPDATE tasks SET
			expected_start_date = (((expected_start_date AT TIME ZONE 'UTC')::date + $4::time) AT TIME ZONE 'UTC'),
			expected_finish_date = (((expected_start_date AT TIME ZONE 'UTC')::date + $4::time) AT TIME ZONE 'UTC')
				+ make_interval(mins => duration),
			updated_at = NOW()
		WHERE ` + unmodifiedFilter
	return s.exec(ctx, "reschedule_unmodified", query, append(filterArgs(filter), startTime.String())...)
}

// ListNewOnDateForFlow implements store.TaskStore.ListNewOnDateForFlow
func (s *PostgresTaskStore) ListNewOnDateForFlow(
	ctx context.Context,
	date time.Time,
	flowID uuid.UUID,
	ruleIDs []uuid.UUID,
) ([]*domain.Task, error) {
	day := dateOf(date.UTC())
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'new'
			AND expected_start_date >= $1 AND expected_start_date < $2
			AND (flow_id = $3 OR rule_id = ANY($4::uuid[]))
		ORDER BY expected_start_date, id
	`
	return s.list(ctx, "list_new_on_date_for_flow", query, day, day.AddDate(0, 0, 1), flowID, uuidArray(ruleIDs))
}

// ListForUsers implements store.TaskStore.ListForUsers
func (s *PostgresTaskStore) ListForUsers(
	ctx context.Context,
	organizationID uuid.UUID,
	userIDs []uuid.UUID,
	from, to time.Time,
) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE organization_id = $1
			AND assigned_to && $2::uuid[]
			AND expected_start_date >= $3 AND expected_start_date < $4
		ORDER BY expected_start_date, id
	`
	return s.list(ctx, "list_for_users", query, organizationID, uuidArray(userIDs), from.UTC(), to.UTC())
}

// ListBusy implements store.TaskStore.ListBusy
func (s *PostgresTaskStore) ListBusy(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_started = $1 AND status = 'in_progress' AND is_background_task = FALSE
		ORDER BY expected_start_date, id
	`
	return s.list(ctx, "list_busy", query, userID)
}

// FindOldestPaused implements store.TaskStore.FindOldestPaused
func (s *PostgresTaskStore) FindOldestPaused(
	ctx context.Context,
	userID uuid.UUID,
	excludeID uuid.UUID,
) (*domain.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE user_started = $1 AND status = 'paused' AND is_background_task = FALSE AND id <> $2
		ORDER BY actual_start_date ASC NULLS LAST, expected_start_date, id
		LIMIT 1
	`
	task, err := scanTask(store.Conn(ctx, s.db).QueryRowContext(ctx, query, userID, excludeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

func (s *PostgresTaskStore) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := store.Conn(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to execute task statement",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	log.Debug("task statement executed",
		slog.String("operation", op),
		slog.Int64("rows", n))
	return n, nil
}

func (s *PostgresTaskStore) list(ctx context.Context, op, query string, args ...any) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := store.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// taskArgs lists the task in taskColumns order.
func taskArgs(t *domain.Task) []any {
	return []any{
		t.ID,
		nullUUID(t.RuleID),
		nullUUID(t.FlowID),
		t.Status,
		t.Title,
		t.Description,
		t.Remarks,
		t.Priority,
		t.Zone,
		t.ExpectedStartDate.UTC(),
		nullTime(t.ExpectedFinishDate),
		t.Duration,
		nullTime(t.ActualStartDate),
		nullTime(t.LastStartDate),
		t.ActualDuration,
		nullTime(t.ActualFinishDate),
		nullUUID(t.UserStarted),
		nullUUID(t.UserFinished),
		uuidArray(t.AssignedTo),
		uuidArray(t.RelatedFlows),
		t.IsBackgroundTask,
		t.Modified,
		t.OrganizationID,
		t.CreatedUser,
		t.ModifiedUser,
		t.CreatedAt,
		t.UpdatedAt,
	}
}

func filterArgs(f store.TaskFilter) []any {
	return []any{f.RuleID, nullTime(f.From), nullTime(f.To)}
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                                 domain.Task
		ruleID, flowID, started, finished uuid.NullUUID
		expectedFinish, actualStart       sql.NullTime
		lastStart, actualFinish           sql.NullTime
		assigned, related                 []string
	)
	err := row.Scan(
		&t.ID,
		&ruleID,
		&flowID,
		&t.Status,
		&t.Title,
		&t.Description,
		&t.Remarks,
		&t.Priority,
		&t.Zone,
		&t.ExpectedStartDate,
		&expectedFinish,
		&t.Duration,
		&actualStart,
		&lastStart,
		&t.ActualDuration,
		&actualFinish,
		&started,
		&finished,
		typeMap.SQLScanner(&assigned),
		typeMap.SQLScanner(&related),
		&t.IsBackgroundTask,
		&t.Modified,
		&t.OrganizationID,
		&t.CreatedUser,
		&t.ModifiedUser,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.AssignedTo, err = parseUUIDs(assigned); err != nil {
		return nil, err
	}
	if t.RelatedFlows, err = parseUUIDs(related); err != nil {
		return nil, err
	}
	t.RuleID = uuidPtr(ruleID)
	t.FlowID = uuidPtr(flowID)
	t.UserStarted = uuidPtr(started)
	t.UserFinished = uuidPtr(finished)
	t.ExpectedStartDate = t.ExpectedStartDate.UTC()
	t.ExpectedFinishDate = timePtr(expectedFinish)
	t.ActualStartDate = timePtr(actualStart)
	t.LastStartDate = timePtr(lastStart)
	t.ActualFinishDate = timePtr(actualFinish)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}
