package service

import (
	"context"
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

// ruleMutator applies a RulePatch and repairs the rule's tasks. Callers run
// apply inside a transaction scope.
type ruleMutator struct {
	rules     store.RuleStore
	tasks     store.TaskStore
	generator *generation.Generator
	horizon   *generation.Horizon
	flows     *FlowTaskCoordinator
	logger    *slog.Logger
}

// apply performs the corrective steps in a fixed order: validity window,
// copied display fields, start time, users and pattern, flows, planned flow
// tasks lost to regeneration. The updated rule is persisted before
// regeneration so that store lookups see it.
func (m *ruleMutator) apply(
	ctx context.Context,
	current *domain.TaskRule,
	patch domain.RulePatch,
	actor uuid.UUID,
	now time.Time,
) (*domain.TaskRule, error) {
	log := logger.FromContextOrDefault(ctx, m.logger).With(slog.String("rule_id", current.ID.String()))
	today := domain.DateOf(now)

	next := current.Clone()
	patch.Apply(next)
	next.ModifiedUser = actor
	next.UpdatedAt = now.UTC()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	filter := store.TaskFilter{RuleID: next.ID}

	if patch.TouchesValidity() {
		if err := m.applyValidity(ctx, current, next, actor, today); err != nil {
			return nil, err
		}
	}

	if patch.TouchesDisplay() {
		fields := store.RuleTaskFields{}
		if patch.Title.Set {
			fields.Title = &next.Title
		}
		if patch.Description.Set {
			fields.Description = &next.Description
		}
		if patch.TaskDuration.Set {
			fields.Duration = &next.TaskDuration
		}
		if patch.IsBackgroundTask.Set {
			fields.IsBackgroundTask = &next.IsBackgroundTask
		}
		n, err := m.tasks.PatchUnmodified(ctx, filter, fields)
		if err != nil {
			return nil, fmt.Errorf("failed to patch rule tasks: %w", err)
		}
		log.Debug("patched unmodified tasks", slog.Int64("count", n))
	}

	if patch.TaskStartTime.Present() && patch.TaskStartTime.Value != current.TaskStartTime {
		n, err := m.tasks.RescheduleUnmodified(ctx, filter, next.TaskStartTime)
		if err != nil {
			return nil, fmt.Errorf("failed to reschedule rule tasks: %w", err)
		}
		log.Debug("rescheduled unmodified tasks", slog.Int64("count", n))
	}

	if err := m.rules.Update(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save rule: %w", err)
	}

	var restoreFrom *time.Time
	if patch.TouchesPattern() {
		if err := m.regenerateFromToday(ctx, next, actor, today); err != nil {
			return nil, err
		}
		restoreFrom = &today
	}
	if patch.TouchesValidity() && next.ValidFrom.Before(current.ValidFrom) {
		from := domain.DateOf(next.ValidFrom)
		restoreFrom = &from
	}

	if patch.Flows.Set {
		added, removed := diffIDs(current.Flows, next.Flows)
		for _, flowID := range added {
			if err := m.flows.RegenerateFlow(ctx, flowID, actor); err != nil {
				return nil, err
			}
		}
		for _, flowID := range removed {
			if err := m.flows.RegenerateFlow(ctx, flowID, actor, next.ID); err != nil {
				return nil, err
			}
		}
	}

	if restoreFrom != nil {
		if err := m.flows.RestoreRuleFlowTasks(ctx, next, *restoreFrom, actor); err != nil {
			return nil, err
		}
	}

	if err := m.horizon.Extend(ctx, []*domain.TaskRule{next}, now, actor); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *ruleMutator) applyValidity(
	ctx context.Context,
	current, next *domain.TaskRule,
	actor uuid.UUID,
	today time.Time,
) error {
	oldFrom, newFrom := domain.DateOf(current.ValidFrom), domain.DateOf(next.ValidFrom)

	switch {
	case newFrom.Before(oldFrom):
		if next.GeneratedUntil == nil {
			break
		}
		tasks, err := m.generator.Expand(ctx, next, newFrom, oldFrom, actor)
		if err != nil {
			return err
		}
		if len(tasks) > 0 {
			if err := m.tasks.CreateMultiple(ctx, tasks); err != nil {
				return fmt.Errorf("failed to save tasks of opened range: %w", err)
			}
		}
	case newFrom.After(oldFrom):
		from := today
		if _, err := m.tasks.DeleteUnmodified(ctx, store.TaskFilter{
			RuleID: next.ID,
			From:   &from,
			To:     &newFrom,
		}); err != nil {
			return fmt.Errorf("failed to delete tasks before valid from: %w", err)
		}
		if next.GeneratedUntil != nil && next.GeneratedUntil.Before(newFrom) {
			limit := domain.OccurrenceLimit(today)
			raised := domain.MinDate(&newFrom, &limit)
			next.GeneratedUntil = &raised
		}
	}

	if next.ValidTo != nil {
		validTo := domain.DateOf(*next.ValidTo)
		if _, err := m.tasks.DeleteUnmodified(ctx, store.TaskFilter{
			RuleID: next.ID,
			From:   &validTo,
		}); err != nil {
			return fmt.Errorf("failed to delete tasks after valid to: %w", err)
		}
		if next.GeneratedUntil != nil && next.GeneratedUntil.After(validTo) {
			next.GeneratedUntil = &validTo
		}
	}
	return nil
}

// regenerateFromToday replaces the rule's unmodified tasks from today up to
// its horizon with a fresh expansion.
func (m *ruleMutator) regenerateFromToday(
	ctx context.Context,
	rule *domain.TaskRule,
	actor uuid.UUID,
	today time.Time,
) error {
	from := today
	n, err := m.tasks.DeleteUnmodified(ctx, store.TaskFilter{RuleID: rule.ID, From: &from})
	if err != nil {
		return fmt.Errorf("failed to delete tasks from today: %w", err)
	}

	if rule.GeneratedUntil == nil || !today.Before(*rule.GeneratedUntil) {
		return nil
	}
	tasks, err := m.generator.Expand(ctx, rule, today, *rule.GeneratedUntil, actor)
	if err != nil {
		return err
	}
	if len(tasks) > 0 {
		if err := m.tasks.CreateMultiple(ctx, tasks); err != nil {
			return fmt.Errorf("failed to save regenerated tasks: %w", err)
		}
	}

	logger.FromContextOrDefault(ctx, m.logger).Debug("regenerated rule tasks",
		slog.String("rule_id", rule.ID.String()),
		slog.Int64("deleted", n),
		slog.Int("created", len(tasks)))
	return nil
}

// diffIDs returns the ids only in next and the ids only in prev.
func diffIDs(prev, next []uuid.UUID) (added, removed []uuid.UUID) {
	for _, id := range next {
		if !slices.Contains(prev, id) {
			added = append(added, id)
		}
	}
	for _, id := range prev {
		if !slices.Contains(next, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}
