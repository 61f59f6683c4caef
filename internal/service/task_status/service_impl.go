package task_status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/events"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	tasks     store.TaskStore
	tx        store.Transactor
	guard     *service.Guard
	publisher events.Publisher
	logger    *slog.Logger
	timeFunc  func() time.Time
}

// Option configures the status service.
type Option func(*serviceImpl)

// WithTimeFunc overrides the clock used for transition timestamps.
func WithTimeFunc(fn func() time.Time) Option {
	return func(s *serviceImpl) {
		s.timeFunc = fn
	}
}

// NewService creates a status Service.
func NewService(
	tasks store.TaskStore,
	tx store.Transactor,
	guard *service.Guard,
	publisher events.Publisher,
	logger *slog.Logger,
	opts ...Option,
) Service {
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if tx == nil {
		panic("tx cannot be nil")
	}
	if guard == nil {
		panic("guard cannot be nil")
	}
	if publisher == nil {
		panic("publisher cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &serviceImpl{
		tasks:     tasks,
		tx:        tx,
		guard:     guard,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "task_status_service")),
		timeFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateTaskStatus implements Service.UpdateTaskStatus.
func (s *serviceImpl) UpdateTaskStatus(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	update StatusUpdate,
) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	log.Debug("updating task status",
		slog.String("task_id", id.String()),
		slog.String("user_id", actor.String()),
		slog.String("status", string(update.Status)))

	if !domain.IsValidTaskStatus(update.Status) {
		return nil, domain.NewValidationError("invalid task status")
	}

	var result Result
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		task, err := s.tasks.GetByID(ctx, id)
		if err != nil {
			return err
		}

		org, err := s.guard.Authorize(ctx, actor, service.ResourceTask, service.GrantUpdate)
		if err != nil {
			if errors.Is(err, service.ErrForbidden) {
				return newTransitionError(task, update.Status, "user lacks the task update grant", ErrUnauthorized)
			}
			return err
		}
		if task.OrganizationID != org {
			return service.ErrNotOwned
		}

		prior := task.Status
		now := s.timeFunc().UTC()
		if err := s.transition(ctx, task, update, actor, now); err != nil {
			return err
		}
		result.Result = task

		if prior == domain.TaskStatusInProgress && update.Status != domain.TaskStatusPaused {
			resumed, err := s.resumeNext(ctx, task, actor, now)
			if err != nil {
				return err
			}
			result.Unpaused = resumed
		}
		return nil
	})
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			log.Warn("task status change rejected",
				slog.String("task_id", id.String()),
				slog.String("reason", te.Reason))
			return nil, err
		}
		if errors.Is(err, store.ErrTaskNotFound) || errors.Is(err, service.ErrNotOwned) {
			return nil, err
		}
		log.Error("failed to update task status",
			slog.String("task_id", id.String()),
			slog.String("error", err.Error()))
		return nil, service.NewServiceError(service.ResourceTask, "update_status", err)
	}

	log.Info("task status updated",
		slog.String("task_id", id.String()),
		slog.String("status", string(update.Status)),
		slog.Bool("resumed_other", result.Unpaused != nil))

	s.notify(ctx, actor, result.Result)
	if result.Unpaused != nil {
		s.notify(ctx, actor, result.Unpaused)
	}
	return &result, nil
}

// transition validates and applies one status change and persists it.
func (s *serviceImpl) transition(
	ctx context.Context,
	task *domain.Task,
	update StatusUpdate,
	actor uuid.UUID,
	now time.Time,
) error {
	if err := checkTransition(task, update.Status, actor); err != nil {
		return err
	}
	applyTransition(task, update, actor, now)
	if err := s.tasks.Update(ctx, task); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

// resumeNext puts the actor's oldest paused foreground task back in progress.
func (s *serviceImpl) resumeNext(
	ctx context.Context,
	ended *domain.Task,
	actor uuid.UUID,
	now time.Time,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	next, err := s.tasks.FindOldestPaused(ctx, actor, ended.ID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find paused task: %w", err)
	}

	// A task the user started but was since unassigned from stays paused.
	if !next.IsAssigned(actor) {
		log.Warn("skipping resume of task no longer assigned to user",
			slog.String("task_id", next.ID.String()),
			slog.String("user_id", actor.String()))
		return nil, nil
	}

	if err := s.transition(ctx, next, StatusUpdate{Status: domain.TaskStatusInProgress}, actor, now); err != nil {
		return nil, err
	}
	log.Debug("resumed paused task",
		slog.String("task_id", next.ID.String()),
		slog.String("after_task_id", ended.ID.String()))
	return next, nil
}

func (s *serviceImpl) notify(ctx context.Context, actor uuid.UUID, task *domain.Task) {
	err := s.publisher.Publish(ctx, events.TopicTasks, events.Message{
		Action:    events.ActionUpdate,
		Target:    actor,
		Initiator: actor,
		Data:      task,
	})
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to publish task change",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
	}
}

func checkTransition(task *domain.Task, to domain.TaskStatus, actor uuid.UUID) error {
	switch {
	case to == task.Status:
		return newTransitionError(task, to, "task already has this status", ErrSameStatus)
	case to == domain.TaskStatusPaused && task.Status != domain.TaskStatusInProgress:
		return newTransitionError(task, to, "can only set to paused from in progress", ErrInvalidTransition)
	case !task.IsAssigned(actor):
		return newTransitionError(task, to, "user is not assigned to the task", ErrNotAssigned)
	case task.Status.IsTerminal():
		return newTransitionError(task, to, "task is already closed", ErrInvalidTransition)
	case !domain.CanTransition(task.Status, to):
		return newTransitionError(task, to, "transition not allowed", ErrInvalidTransition)
	}
	return nil
}

func applyTransition(task *domain.Task, update StatusUpdate, actor uuid.UUID, now time.Time) {
	by := actor
	switch update.Status {
	case domain.TaskStatusInProgress:
		task.UserStarted = &by
		last := now
		task.LastStartDate = &last
		if task.ActualStartDate == nil {
			task.ActualStartDate = stamp(update.ActualStartDate, now)
		}
	case domain.TaskStatusPaused:
		accumulate(task, now)
	case domain.TaskStatusFinished, domain.TaskStatusCancelled:
		if task.Status == domain.TaskStatusInProgress {
			accumulate(task, now)
		}
		task.UserFinished = &by
		task.ActualFinishDate = stamp(update.ActualFinishDate, now)
	}
	task.Status = update.Status
	task.ModifiedUser = actor
	task.UpdatedAt = now
}

// accumulate adds the minutes since the last start, rounded half away from zero.
func accumulate(task *domain.Task, now time.Time) {
	if task.LastStartDate == nil {
		return
	}
	if elapsed := math.Round(now.Sub(*task.LastStartDate).Minutes()); elapsed > 0 {
		task.ActualDuration += int(elapsed)
	}
}

func stamp(supplied *time.Time, now time.Time) *time.Time {
	t := now
	if supplied != nil {
		t = supplied.UTC()
	}
	return &t
}
