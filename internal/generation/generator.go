package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// Option configures a Generator or a Horizon.
type Option func(*options)

type options struct {
	timeFunc func() time.Time
}

// WithTimeFunc overrides the clock used to evaluate the one-year occurrence
// limit and to stamp timestamps.
func WithTimeFunc(fn func() time.Time) Option {
	return func(o *options) {
		o.timeFunc = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{timeFunc: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Generator expands task rules into concrete tasks.
// The tasks it returns are not persisted; assignee merges into existing shared
// tasks are written immediately through the task store.
type Generator struct {
	tasks    store.TaskStore
	logger   *slog.Logger
	timeFunc func() time.Time
}

// NewGenerator creates a Generator reading and merging through tasks.
func NewGenerator(tasks store.TaskStore, logger *slog.Logger, opts ...Option) *Generator {
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &Generator{
		tasks:    tasks,
		logger:   logger.With(slog.String("component", "task_generator")),
		timeFunc: o.timeFunc,
	}
}

// Expand returns the new tasks for every occurrence of rule in [from, to),
// iterating calendar days in ascending order. Users that already have a task
// of the rule on a day are skipped. For shared rules the rule's users are
// merged into an existing task of the day instead of creating a new one.
//
// actor is recorded as the creator; uuid.Nil stands for the system and falls
// back to the rule's creator.
func (g *Generator) Expand(
	ctx context.Context,
	rule *domain.TaskRule,
	from, to time.Time,
	actor uuid.UUID,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	from, to = domain.DateOf(from), domain.DateOf(to)
	if len(rule.Users) == 0 || !from.Before(to) {
		return nil, nil
	}

	log.Debug("expanding rule",
		slog.String("rule_id", rule.ID.String()),
		slog.String("from", domain.DayKey(from)),
		slog.String("to", domain.DayKey(to)))

	var index OccurrenceIndex
	if !rule.IsSharedTask {
		var err error
		index, err = BuildIndex(ctx, g.tasks, rule.ID, from, to)
		if err != nil {
			return nil, err
		}
	}

	now := g.timeFunc()
	var created []*domain.Task
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		if !rule.ValidOn(day) || !rule.IsOccurrence(day, now) {
			continue
		}

		if rule.IsSharedTask {
			task, err := g.mergeOrCreate(ctx, rule, day, rule.Users, nil, actor)
			if err != nil {
				return nil, err
			}
			if task != nil {
				created = append(created, task)
			}
			continue
		}

		for _, userID := range rule.Users {
			if index.Has(userID, day) {
				continue
			}
			created = append(created, g.newTask(rule, day, []uuid.UUID{userID}, nil, actor, now))
			index.Add(userID, day)
		}
	}

	log.Debug("rule expanded",
		slog.String("rule_id", rule.ID.String()),
		slog.Int("new_tasks", len(created)))
	return created, nil
}

// ExpandForFlow returns the flow-linked task of rule for userID on date, or
// nil when the day is not an occurrence or the user already has a task of the
// rule on that day. Shared rules merge userID into the day's existing task.
func (g *Generator) ExpandForFlow(
	ctx context.Context,
	rule *domain.TaskRule,
	flowID uuid.UUID,
	date time.Time,
	userID uuid.UUID,
	actor uuid.UUID,
) (*domain.Task, error) {
	day := domain.DateOf(date)
	now := g.timeFunc()
	if !rule.ValidOn(day) || !rule.IsOccurrence(day, now) {
		return nil, nil
	}

	if rule.IsSharedTask {
		return g.mergeOrCreate(ctx, rule, day, []uuid.UUID{userID}, &flowID, actor)
	}

	index, err := BuildIndex(ctx, g.tasks, rule.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if index.Has(userID, day) {
		return nil, nil
	}
	return g.newTask(rule, day, []uuid.UUID{userID}, &flowID, actor, now), nil
}

// mergeOrCreate keeps at most one task per shared rule and day. When the day
// already has a task, users are merged into its assignees and nil is returned
// so that the caller does not insert it again.
//
// The lookup and the later insert are not atomic: concurrent callers for the
// same rule and day can both miss the existing task.
func (g *Generator) mergeOrCreate(
	ctx context.Context,
	rule *domain.TaskRule,
	day time.Time,
	users []uuid.UUID,
	flowID *uuid.UUID,
	actor uuid.UUID,
) (*domain.Task, error) {
	existing, err := g.tasks.FindByRuleAndDate(ctx, rule.ID, day)
	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return g.newTask(rule, day, slices.Clone(users), flowID, actor, g.timeFunc()), nil
	case err != nil:
		return nil, fmt.Errorf("%w: find shared task: %w", ErrGenerationFailed, err)
	}

	merged := domain.UnionUsers(existing.AssignedTo, users...)
	if len(merged) == len(existing.AssignedTo) {
		return nil, nil
	}

	if err := g.tasks.UpdateAssignees(ctx, existing.ID, merged, creator(rule, actor)); err != nil {
		return nil, fmt.Errorf("%w: merge shared task assignees: %w", ErrGenerationFailed, err)
	}
	existing.AssignedTo = merged

	logger.FromContextOrDefault(ctx, g.logger).Debug("merged users into shared task",
		slog.String("rule_id", rule.ID.String()),
		slog.String("task_id", existing.ID.String()),
		slog.Int("assignees", len(merged)))
	return nil, nil
}

func (g *Generator) newTask(
	rule *domain.TaskRule,
	day time.Time,
	assignees []uuid.UUID,
	flowID *uuid.UUID,
	actor uuid.UUID,
	now time.Time,
) *domain.Task {
	ruleID := rule.ID
	start := rule.TaskStartTime.On(day)
	finish := start.Add(time.Duration(rule.TaskDuration) * time.Minute)
	by := creator(rule, actor)

	task := &domain.Task{
		ID:                 uuid.New(),
		RuleID:             &ruleID,
		Status:             domain.TaskStatusNew,
		Title:              rule.Title,
		Description:        rule.Description,
		Remarks:            rule.Remarks,
		Priority:           rule.Priority,
		Zone:               rule.Zone,
		ExpectedStartDate:  start,
		ExpectedFinishDate: &finish,
		Duration:           rule.TaskDuration,
		AssignedTo:         assignees,
		IsBackgroundTask:   rule.IsBackgroundTask,
		OrganizationID:     rule.OrganizationID,
		CreatedUser:        by,
		ModifiedUser:       by,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}
	if flowID != nil {
		id := *flowID
		task.FlowID = &id
	}
	return task
}

// creator resolves the user recorded on generated tasks.
func creator(rule *domain.TaskRule, actor uuid.UUID) uuid.UUID {
	if actor == uuid.Nil {
		return rule.CreatedUser
	}
	return actor
}
