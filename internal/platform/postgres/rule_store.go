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

const ruleColumns = `
	id, title, description, remarks, type, daily_type, weekly_days, monthly_months,
	monthly_on, monthly_on_type, is_background_task, is_shared_task, task_start_time,
	valid_from, valid_to, generated_until, task_duration, priority, zone, users, flows,
	organization_id, created_user, modified_user, created_at, updated_at`

// PostgresRuleStore implements the store.RuleStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRuleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRuleStore creates a new PostgreSQL implementation of the RuleStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRuleStore(db *sql.DB, logger *slog.Logger) *PostgresRuleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRuleStore{
		db:     db,
		logger: logger.With(slog.String("component", "rule_store")),
	}
}

// Ensure PostgresRuleStore implements store.RuleStore interface
var _ store.RuleStore = (*PostgresRuleStore)(nil)

// Create implements store.RuleStore.Create
func (s *PostgresRuleStore) Create(ctx context.Context, rule *domain.TaskRule) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rule.Validate(); err != nil {
		log.Warn("rule validation failed during create",
			slog.String("error", err.Error()),
			slog.String("rule_id", rule.ID.String()))
		return err
	}

	query := `
		INSERT INTO task_rules (` + ruleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20::uuid[], $21::uuid[], $22, $23, $24, $25, $26)
	`
	_, err := store.Conn(ctx, s.db).ExecContext(ctx, query,
		rule.ID,
		rule.Title,
		rule.Description,
		rule.Remarks,
		rule.Type,
		rule.DailyType,
		weekdayArray(rule.WeeklyDays),
		monthArray(rule.MonthlyMonths),
		rule.MonthlyOn,
		rule.MonthlyOnType,
		rule.IsBackgroundTask,
		rule.IsSharedTask,
		rule.TaskStartTime.String(),
		rule.ValidFrom,
		nullTime(rule.ValidTo),
		nullTime(rule.GeneratedUntil),
		rule.TaskDuration,
		rule.Priority,
		rule.Zone,
		uuidArray(rule.Users),
		uuidArray(rule.Flows),
		rule.OrganizationID,
		rule.CreatedUser,
		rule.ModifiedUser,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create task rule",
			slog.String("error", err.Error()),
			slog.String("rule_id", rule.ID.String()))
		return MapError(err)
	}

	log.Debug("task rule created", slog.String("rule_id", rule.ID.String()))
	return nil
}

// GetByID implements store.RuleStore.GetByID
func (s *PostgresRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskRule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + ruleColumns + ` FROM task_rules WHERE id = $1`
	rule, err := scanRule(store.Conn(ctx, s.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task rule not found", slog.String("rule_id", id.String()))
			return nil, store.ErrRuleNotFound
		}
		log.Error("failed to get task rule",
			slog.String("error", err.Error()),
			slog.String("rule_id", id.String()))
		return nil, MapError(err)
	}
	return rule, nil
}

// Update implements store.RuleStore.Update
func (s *PostgresRuleStore) Update(ctx context.Context, rule *domain.TaskRule) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := rule.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE task_rules SET
			title = $2, description = $3, remarks = $4, type = $5, daily_type = $6,
			weekly_days = $7, monthly_months = $8, monthly_on = $9, monthly_on_type = $10,
			is_background_task = $11, is_shared_task = $12, task_start_time = $13,
			valid_from = $14, valid_to = $15, generated_until = $16, task_duration = $17,
			priority = $18, zone = $19, users = $20::uuid[], flows = $21::uuid[],
			modified_user = $22, updated_at = $23
		WHERE id = $1
	`
	result, err := store.Conn(ctx, s.db).ExecContext(ctx, query,
		rule.ID,
		rule.Title,
		rule.Description,
		rule.Remarks,
		rule.Type,
		rule.DailyType,
		weekdayArray(rule.WeeklyDays),
		monthArray(rule.MonthlyMonths),
		rule.MonthlyOn,
		rule.MonthlyOnType,
		rule.IsBackgroundTask,
		rule.IsSharedTask,
		rule.TaskStartTime.String(),
		rule.ValidFrom,
		nullTime(rule.ValidTo),
		nullTime(rule.GeneratedUntil),
		rule.TaskDuration,
		rule.Priority,
		rule.Zone,
		uuidArray(rule.Users),
		uuidArray(rule.Flows),
		rule.ModifiedUser,
		rule.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to update task rule",
			slog.String("error", err.Error()),
			slog.String("rule_id", rule.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task rule"); err != nil {
		return store.ErrRuleNotFound
	}
	return nil
}

// UpdateGeneratedUntil implements store.RuleStore.UpdateGeneratedUntil
func (s *PostgresRuleStore) UpdateGeneratedUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	result, err := store.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE task_rules SET generated_until = $2 WHERE id = $1`,
		id, dateOf(until))
	if err != nil {
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "task rule"); err != nil {
		return store.ErrRuleNotFound
	}
	return nil
}

// ListByFlow implements store.RuleStore.ListByFlow
func (s *PostgresRuleStore) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM task_rules WHERE $1 = ANY(flows) ORDER BY created_at, id`
	return s.list(ctx, "list_by_flow", query, flowID)
}

// ListForUsers implements store.RuleStore.ListForUsers
func (s *PostgresRuleStore) ListForUsers(
	ctx context.Context,
	organizationID uuid.UUID,
	userIDs []uuid.UUID,
	from, to time.Time,
) ([]*domain.TaskRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM task_rules
		WHERE organization_id = $1
			AND users && $2::uuid[]
			AND valid_from < $4
			AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY created_at, id
	`
	return s.list(ctx, "list_for_users", query, organizationID, uuidArray(userIDs), dateOf(from), dateOf(to))
}

// ListHorizonDue implements store.RuleStore.ListHorizonDue
func (s *PostgresRuleStore) ListHorizonDue(ctx context.Context, before time.Time) ([]*domain.TaskRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM task_rules
		WHERE COALESCE(generated_until, valid_from) < $1
			AND (valid_to IS NULL OR COALESCE(generated_until, valid_from) < valid_to)
		ORDER BY created_at, id
	`
	return s.list(ctx, "list_horizon_due", query, dateOf(before))
}

func (s *PostgresRuleStore) list(ctx context.Context, op, query string, args ...any) ([]*domain.TaskRule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := store.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query task rules",
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var rules []*domain.TaskRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rule rows: %w", err)
	}
	return rules, nil
}

func scanRule(row rowScanner) (*domain.TaskRule, error) {
	var (
		r             domain.TaskRule
		weeklyDays    []int
		monthlyMonths []int
		startTime     string
		validTo       sql.NullTime
		generated     sql.NullTime
		users, flows  []string
	)
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Remarks,
		&r.Type,
		&r.DailyType,
		typeMap.SQLScanner(&weeklyDays),
		typeMap.SQLScanner(&monthlyMonths),
		&r.MonthlyOn,
		&r.MonthlyOnType,
		&r.IsBackgroundTask,
		&r.IsSharedTask,
		&startTime,
		&r.ValidFrom,
		&validTo,
		&generated,
		&r.TaskDuration,
		&r.Priority,
		&r.Zone,
		typeMap.SQLScanner(&users),
		typeMap.SQLScanner(&flows),
		&r.OrganizationID,
		&r.CreatedUser,
		&r.ModifiedUser,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.TaskStartTime, err = domain.ParseTimeOfDay(startTime); err != nil {
		return nil, err
	}
	if r.Users, err = parseUUIDs(users); err != nil {
		return nil, err
	}
	if r.Flows, err = parseUUIDs(flows); err != nil {
		return nil, err
	}
	for _, d := range weeklyDays {
		r.WeeklyDays = append(r.WeeklyDays, time.Weekday(d))
	}
	for _, m := range monthlyMonths {
		r.MonthlyMonths = append(r.MonthlyMonths, time.Month(m))
	}
	r.ValidFrom = dateOf(r.ValidFrom)
	r.ValidTo = datePtr(validTo)
	r.GeneratedUntil = datePtr(generated)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func weekdayArray(days []time.Weekday) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func monthArray(months []time.Month) []int32 {
	out := make([]int32, len(months))
	for i, m := range months {
		out[i] = int32(m)
	}
	return out
}
