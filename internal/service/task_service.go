package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// DailyQuery selects the tasks of users between two dates, both inclusive.
type DailyQuery struct {
	From  time.Time
	To    time.Time
	Users []uuid.UUID
}

// Validate checks the query before any lookup or generation runs.
func (q DailyQuery) Validate() error {
	return domain.Validate(domain.All(
		domain.Require(!q.From.IsZero(), "from date is required"),
		domain.Require(!q.To.IsZero(), "to date is required"),
		domain.RequireFunc(func() bool {
			return !domain.DateOf(q.To).Before(domain.DateOf(q.From))
		}, "to date cannot be before from date"),
		domain.Require(len(q.Users) > 0, "at least one user is required"),
	))
}

// TaskService provides task operations other than status changes.
type TaskService interface {
	// CreateTask stores a manually created task. Tasks without assignees are
	// assigned to the actor.
	CreateTask(ctx context.Context, actor uuid.UUID, task *domain.Task) (*domain.Task, error)

	// UpdateTask edits a task directly. Edited tasks are marked modified and
	// no longer follow later rule changes.
	UpdateTask(ctx context.Context, actor uuid.UUID, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)

	// GetDailyTasks returns the tasks of the queried users in the date range,
	// first extending the horizon of every rule of those users that does not
	// yet cover the range.
	GetDailyTasks(ctx context.Context, actor uuid.UUID, query DailyQuery) ([]*domain.Task, error)

	// GetBusyTasks returns the foreground tasks userID has in progress.
	GetBusyTasks(ctx context.Context, actor uuid.UUID, userID uuid.UUID) ([]*domain.Task, error)
}

type taskServiceImpl struct {
	tasks    store.TaskStore
	rules    store.RuleStore
	tx       store.Transactor
	guard    *Guard
	horizon  *generation.Horizon
	logger   *slog.Logger
	timeFunc func() time.Time
}

var _ TaskService = (*taskServiceImpl)(nil)

// NewTaskService creates a TaskService.
func NewTaskService(
	tasks store.TaskStore,
	rules store.RuleStore,
	tx store.Transactor,
	guard *Guard,
	horizon *generation.Horizon,
	logger *slog.Logger,
	opts ...Option,
) TaskService {
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if rules == nil {
		panic("rules cannot be nil")
	}
	if tx == nil {
		panic("tx cannot be nil")
	}
	if guard == nil {
		panic("guard cannot be nil")
	}
	if horizon == nil {
		panic("horizon cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &taskServiceImpl{
		tasks:    tasks,
		rules:    rules,
		tx:       tx,
		guard:    guard,
		horizon:  horizon,
		logger:   logger.With(slog.String("component", "task_service")),
		timeFunc: o.timeFunc,
	}
}

// CreateTask implements TaskService.CreateTask.
func (s *taskServiceImpl) CreateTask(ctx context.Context, actor uuid.UUID, task *domain.Task) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	org, err := s.guard.Authorize(ctx, actor, ResourceTask, GrantCreate)
	if err != nil {
		return nil, err
	}

	now := s.timeFunc().UTC()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusNew
	}
	if len(task.AssignedTo) == 0 {
		task.AssignedTo = []uuid.UUID{actor}
	}
	task.OrganizationID = org
	task.CreatedUser = actor
	task.ModifiedUser = actor
	task.CreatedAt = now
	task.UpdatedAt = now
	if err := task.Validate(); err != nil {
		return nil, err
	}

	if task.RuleID != nil {
		rule, err := s.rules.GetByID(ctx, *task.RuleID)
		if err != nil {
			return nil, err
		}
		if rule.OrganizationID != org {
			return nil, ErrNotOwned
		}
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		log.Error("failed to create task", slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTask, "create", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("user_id", actor.String()))
	return task, nil
}

// UpdateTask implements TaskService.UpdateTask.
func (s *taskServiceImpl) UpdateTask(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	org, err := s.guard.Authorize(ctx, actor, ResourceTask, GrantUpdate)
	if err != nil {
		return nil, err
	}

	var updated *domain.Task
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		task, err := s.tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task.OrganizationID != org {
			return ErrNotOwned
		}

		patch.Apply(task)
		task.ModifiedUser = actor
		task.UpdatedAt = s.timeFunc().UTC()
		if err := task.Validate(); err != nil {
			return err
		}
		if err := s.tasks.Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		if passThrough(err, store.ErrTaskNotFound, ErrNotOwned, domain.ErrValidation) {
			return nil, err
		}
		log.Error("failed to update task",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTask, "update", err)
	}

	log.Info("task updated", slog.String("task_id", id.String()))
	return updated, nil
}

// GetDailyTasks implements TaskService.GetDailyTasks.
func (s *taskServiceImpl) GetDailyTasks(
	ctx context.Context,
	actor uuid.UUID,
	query DailyQuery,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	org, err := s.guard.Authorize(ctx, actor, ResourceTask, GrantRead)
	if err != nil {
		return nil, err
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	from := domain.DateOf(query.From)
	to := domain.DateOf(query.To).AddDate(0, 0, 1)

	var tasks []*domain.Task
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		rules, err := s.rules.ListForUsers(ctx, org, query.Users, from, to)
		if err != nil {
			return err
		}

		var stale []*domain.TaskRule
		for _, rule := range rules {
			if rule.GeneratedUntil == nil || rule.GeneratedUntil.Before(to) {
				stale = append(stale, rule)
			}
		}
		if len(stale) > 0 {
			log.Debug("extending stale rule horizons", slog.Int("rules", len(stale)))
			if err := s.horizon.Extend(ctx, stale, to, actor); err != nil {
				return err
			}
		}

		tasks, err = s.tasks.ListForUsers(ctx, org, query.Users, from, to)
		return err
	})
	if err != nil {
		log.Error("failed to get daily tasks", slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTask, "get_daily", err)
	}
	return tasks, nil
}

// GetBusyTasks implements TaskService.GetBusyTasks.
func (s *taskServiceImpl) GetBusyTasks(
	ctx context.Context,
	actor uuid.UUID,
	userID uuid.UUID,
) ([]*domain.Task, error) {
	org, err := s.guard.Authorize(ctx, actor, ResourceTask, GrantRead)
	if err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user is required")
	}
	if err := s.guard.SameOrganization(ctx, userID, org); err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListBusy(ctx, userID)
	if err != nil {
		return nil, NewServiceError(ResourceTask, "get_busy", err)
	}
	return tasks, nil
}
