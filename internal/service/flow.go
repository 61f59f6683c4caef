package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// FlowTaskCoordinator keeps flow-linked tasks in line with planning records.
type FlowTaskCoordinator struct {
	rules     store.RuleStore
	tasks     store.TaskStore
	plannings store.PlanningStore
	generator *generation.Generator
	tx        store.Transactor
	logger    *slog.Logger
}

// NewFlowTaskCoordinator creates a FlowTaskCoordinator.
func NewFlowTaskCoordinator(
	rules store.RuleStore,
	tasks store.TaskStore,
	plannings store.PlanningStore,
	generator *generation.Generator,
	tx store.Transactor,
	logger *slog.Logger,
) *FlowTaskCoordinator {
	if rules == nil {
		panic("rules cannot be nil")
	}
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if plannings == nil {
		panic("plannings cannot be nil")
	}
	if generator == nil {
		panic("generator cannot be nil")
	}
	if tx == nil {
		panic("tx cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowTaskCoordinator{
		rules:     rules,
		tasks:     tasks,
		plannings: plannings,
		generator: generator,
		tx:        tx,
		logger:    logger.With(slog.String("component", "flow_task_coordinator")),
	}
}

// CreateFlowTasks generates, for every rule referencing flowID and valid on
// date, the task userID needs on that day. Shared rules merge userID into the
// day's existing task. The new tasks are persisted in one batch and returned.
func (c *FlowTaskCoordinator) CreateFlowTasks(
	ctx context.Context,
	flowID uuid.UUID,
	date time.Time,
	userID, actor uuid.UUID,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)
	day := domain.DateOf(date)

	var created []*domain.Task
	err := c.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		rules, err := c.rules.ListByFlow(ctx, flowID)
		if err != nil {
			return fmt.Errorf("failed to list rules of flow: %w", err)
		}

		for _, rule := range rules {
			if !rule.ValidOn(day) {
				continue
			}
			task, err := c.generator.ExpandForFlow(ctx, rule, flowID, day, userID, actor)
			if err != nil {
				return err
			}
			if task != nil {
				created = append(created, task)
			}
		}

		if len(created) == 0 {
			return nil
		}
		if err := c.tasks.CreateMultiple(ctx, created); err != nil {
			return fmt.Errorf("failed to save flow tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to create flow tasks",
			slog.String("flow_id", flowID.String()),
			slog.String("date", domain.DayKey(day)),
			slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("created flow tasks",
		slog.String("flow_id", flowID.String()),
		slog.String("date", domain.DayKey(day)),
		slog.String("user_id", userID.String()),
		slog.Int("count", len(created)))
	return created, nil
}

// RemoveFlowTasks undoes CreateFlowTasks for userID on date. Only New tasks
// assigned to userID are touched. Tasks of non-shared rules and flow-only
// tasks are deleted. On a shared task userID is unassigned unless the rule
// itself lists them; a shared task left without assignees is deleted.
// A rule that another flow planned for userID on date still references gets
// its task back through that flow.
func (c *FlowTaskCoordinator) RemoveFlowTasks(
	ctx context.Context,
	flowID uuid.UUID,
	date time.Time,
	userID, actor uuid.UUID,
) error {
	return c.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		return c.removeFlowTasks(ctx, flowID, date, userID, actor, nil)
	})
}

// RegenerateFlow removes and recreates the flow tasks of every planning that
// references flowID. extraRuleIDs names rules that no longer reference the
// flow but whose shared tasks may still carry flow users.
func (c *FlowTaskCoordinator) RegenerateFlow(
	ctx context.Context,
	flowID, actor uuid.UUID,
	extraRuleIDs ...uuid.UUID,
) error {
	log := logger.FromContextOrDefault(ctx, c.logger)

	return c.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		plannings, err := c.plannings.ListByFlow(ctx, flowID)
		if err != nil {
			return fmt.Errorf("failed to list plannings of flow: %w", err)
		}

		for _, p := range plannings {
			if err := c.removeFlowTasks(ctx, flowID, p.Date, p.UserID, actor, extraRuleIDs); err != nil {
				return err
			}
			if _, err := c.CreateFlowTasks(ctx, flowID, p.Date, p.UserID, actor); err != nil {
				return err
			}
		}

		log.Debug("regenerated flow tasks",
			slog.String("flow_id", flowID.String()),
			slog.Int("plannings", len(plannings)))
		return nil
	})
}

// RestoreRuleFlowTasks gives every user planned on one of rule's flows, on a
// day from onwards, the task of rule that the plan calls for. It is the
// follow-up to a regeneration that deleted the rule's unmodified tasks, flow
// tasks and merged shared tasks included. Days already covered are left alone.
func (c *FlowTaskCoordinator) RestoreRuleFlowTasks(
	ctx context.Context,
	rule *domain.TaskRule,
	from time.Time,
	actor uuid.UUID,
) error {
	if len(rule.Flows) == 0 {
		return nil
	}
	start := domain.DateOf(from)

	return c.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		var restored int
		for _, flowID := range rule.Flows {
			plannings, err := c.plannings.ListByFlow(ctx, flowID)
			if err != nil {
				return fmt.Errorf("failed to list plannings of flow: %w", err)
			}
			for _, p := range plannings {
				if domain.DateOf(p.Date).Before(start) {
					continue
				}
				ok, err := c.expandOne(ctx, rule, flowID, p.Date, p.UserID, actor)
				if err != nil {
					return err
				}
				if ok {
					restored++
				}
			}
		}

		logger.FromContextOrDefault(ctx, c.logger).Debug("restored flow tasks of rule",
			slog.String("rule_id", rule.ID.String()),
			slog.String("from", domain.DayKey(start)),
			slog.Int("created", restored))
		return nil
	})
}

// expandOne generates and persists the flow task of a single rule, user and
// day. Persisting right away lets a later call for another flow of the same
// user and day see the task and skip it.
func (c *FlowTaskCoordinator) expandOne(
	ctx context.Context,
	rule *domain.TaskRule,
	flowID uuid.UUID,
	date time.Time,
	userID, actor uuid.UUID,
) (bool, error) {
	task, err := c.generator.ExpandForFlow(ctx, rule, flowID, date, userID, actor)
	if err != nil || task == nil {
		return false, err
	}
	if err := c.tasks.CreateMultiple(ctx, []*domain.Task{task}); err != nil {
		return false, fmt.Errorf("failed to save flow task: %w", err)
	}
	return true, nil
}

// coverFromOtherFlows re-derives the tasks of touched rules from the flows the
// user still has planned on day, so that dropping one flow keeps a task
// another planned flow also calls for.
func (c *FlowTaskCoordinator) coverFromOtherFlows(
	ctx context.Context,
	removedFlow uuid.UUID,
	day time.Time,
	userID, actor uuid.UUID,
	touched []*domain.TaskRule,
) error {
	planning, err := c.plannings.FindByUserAndDate(ctx, userID, day)
	if errors.Is(err, store.ErrPlanningNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find planning of user: %w", err)
	}

	for _, rule := range touched {
		for _, other := range planning.Flows {
			if other == removedFlow || !slices.Contains(rule.Flows, other) {
				continue
			}
			if _, err := c.expandOne(ctx, rule, other, day, userID, actor); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (c *FlowTaskCoordinator) removeFlowTasks(
	ctx context.Context,
	flowID uuid.UUID,
	date time.Time,
	userID, actor uuid.UUID,
	extraRuleIDs []uuid.UUID,
) error {
	log := logger.FromContextOrDefault(ctx, c.logger)
	day := domain.DateOf(date)

	rules, err := c.rules.ListByFlow(ctx, flowID)
	if err != nil {
		return fmt.Errorf("failed to list rules of flow: %w", err)
	}
	for _, id := range extraRuleIDs {
		rule, err := c.rules.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get rule %s: %w", id, err)
		}
		rules = append(rules, rule)
	}

	byID := make(map[uuid.UUID]*domain.TaskRule, len(rules))
	var sharedIDs []uuid.UUID
	for _, rule := range rules {
		if _, seen := byID[rule.ID]; seen {
			continue
		}
		byID[rule.ID] = rule
		if rule.IsSharedTask {
			sharedIDs = append(sharedIDs, rule.ID)
		}
	}

	tasks, err := c.tasks.ListNewOnDateForFlow(ctx, day, flowID, sharedIDs)
	if err != nil {
		return fmt.Errorf("failed to list flow tasks: %w", err)
	}

	var deleted, unassigned int
	var touched []*domain.TaskRule
	for _, task := range tasks {
		if !task.IsAssigned(userID) {
			continue
		}

		var rule *domain.TaskRule
		if task.RuleID != nil {
			rule = byID[*task.RuleID]
		}

		switch {
		case rule != nil && rule.IsSharedTask:
			if rule.HasUser(userID) {
				continue
			}
			remaining := domain.RemoveUser(task.AssignedTo, userID)
			if len(remaining) == 0 {
				if err := c.tasks.Delete(ctx, task.ID); err != nil {
					return fmt.Errorf("failed to delete shared task: %w", err)
				}
				deleted++
				touched = append(touched, rule)
				continue
			}
			if err := c.tasks.UpdateAssignees(ctx, task.ID, remaining, actor); err != nil {
				return fmt.Errorf("failed to unassign user from shared task: %w", err)
			}
			unassigned++
			touched = append(touched, rule)
		case task.FlowID != nil && *task.FlowID == flowID:
			if err := c.tasks.Delete(ctx, task.ID); err != nil {
				return fmt.Errorf("failed to delete flow task: %w", err)
			}
			deleted++
			if rule != nil {
				touched = append(touched, rule)
			}
		}
	}

	if len(touched) > 0 {
		if err := c.coverFromOtherFlows(ctx, flowID, day, userID, actor, touched); err != nil {
			return err
		}
	}

	log.Debug("removed flow tasks",
		slog.String("flow_id", flowID.String()),
		slog.String("date", domain.DayKey(day)),
		slog.String("user_id", userID.String()),
		slog.Int("deleted", deleted),
		slog.Int("unassigned", unassigned))
	return nil
}
