package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// HorizonWindowMonths is how far past the requested target date a rule is generated.
const HorizonWindowMonths = 1

// HorizonLimit returns the exclusive end of the next expansion of rule towards
// target: the earliest of target plus HorizonWindowMonths, one year from now, and
// the rule's validTo.
func HorizonLimit(rule *domain.TaskRule, target, now time.Time) time.Time {
	limit := domain.DateOf(target).AddDate(0, HorizonWindowMonths, 0)
	yearAhead := domain.DateOf(now).AddDate(1, 0, 0)
	return domain.MinDate(&limit, &yearAhead, rule.ValidTo)
}

// Horizon advances the generatedUntil high-water mark of rules.
type Horizon struct {
	rules     store.RuleStore
	tasks     store.TaskStore
	generator *Generator
	tx        store.Transactor
	logger    *slog.Logger
	timeFunc  func() time.Time
}

// NewHorizon creates a Horizon that generates through generator and persists
// through rules and tasks inside tx scopes.
func NewHorizon(
	rules store.RuleStore,
	tasks store.TaskStore,
	generator *Generator,
	tx store.Transactor,
	logger *slog.Logger,
	opts ...Option,
) *Horizon {
	if rules == nil {
		panic("rules cannot be nil")
	}
	if tasks == nil {
		panic("tasks cannot be nil")
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
	o := buildOptions(opts)
	return &Horizon{
		rules:     rules,
		tasks:     tasks,
		generator: generator,
		tx:        tx,
		logger:    logger.With(slog.String("component", "horizon_scheduler")),
		timeFunc:  o.timeFunc,
	}
}

// Extend generates every rule forward to HorizonLimit(rule, target, now).
// Each rule is extended in its own transaction scope, which joins the caller's
// scope when one is active. The horizon never moves backwards. On success the
// rules' GeneratedUntil fields reflect the persisted marks.
func (h *Horizon) Extend(ctx context.Context, rules []*domain.TaskRule, target time.Time, actor uuid.UUID) error {
	for _, rule := range rules {
		if err := h.extendRule(ctx, rule, target, actor); err != nil {
			return err
		}
	}
	return nil
}

// RefreshDue extends every rule whose horizon falls within lead of now and
// returns how many rules were processed. A failing rule does not stop the
// others; all failures are returned joined.
func (h *Horizon) RefreshDue(ctx context.Context, lead time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	now := h.timeFunc()
	due, err := h.rules.ListHorizonDue(ctx, domain.DateOf(now.Add(lead)))
	if err != nil {
		return 0, fmt.Errorf("%w: list due rules: %w", ErrHorizonFailed, err)
	}

	var errs []error
	for _, rule := range due {
		if err := h.extendRule(ctx, rule, now, uuid.Nil); err != nil {
			log.Error("failed to refresh rule horizon",
				slog.String("rule_id", rule.ID.String()),
				slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	log.Info("refreshed rule horizons",
		slog.Int("due", len(due)),
		slog.Int("failed", len(errs)))
	return len(due), errors.Join(errs...)
}

func (h *Horizon) extendRule(ctx context.Context, rule *domain.TaskRule, target time.Time, actor uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, h.logger)

	from := rule.HorizonStart()
	until := HorizonLimit(rule, target, h.timeFunc())
	if !from.Before(until) {
		log.Debug("rule horizon already covers target",
			slog.String("rule_id", rule.ID.String()),
			slog.String("generated_until", domain.DayKey(from)))
		return nil
	}

	err := h.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		tasks, err := h.generator.Expand(ctx, rule, from, until, actor)
		if err != nil {
			return err
		}
		if len(tasks) > 0 {
			if err := h.tasks.CreateMultiple(ctx, tasks); err != nil {
				return fmt.Errorf("%w: save generated tasks: %w", ErrHorizonFailed, err)
			}
		}
		if err := h.rules.UpdateGeneratedUntil(ctx, rule.ID, until); err != nil {
			return fmt.Errorf("%w: save generated until: %w", ErrHorizonFailed, err)
		}

		log.Debug("rule horizon extended",
			slog.String("rule_id", rule.ID.String()),
			slog.String("from", domain.DayKey(from)),
			slog.String("until", domain.DayKey(until)),
			slog.Int("new_tasks", len(tasks)))
		return nil
	})
	if err != nil {
		return err
	}

	rule.GeneratedUntil = &until
	return nil
}
