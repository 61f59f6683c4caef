package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// RuleService provides task rule operations.
type RuleService interface {
	// CreateTaskRule stores a new rule owned by the actor's organization and
	// immediately generates its tasks one horizon window ahead, in one transaction.
	CreateTaskRule(ctx context.Context, actor uuid.UUID, rule *domain.TaskRule) (*domain.TaskRule, error)

	// UpdateTaskRule applies patch to the rule and repairs its tasks.
	// The patch is validated before any side effect.
	UpdateTaskRule(
		ctx context.Context,
		actor uuid.UUID,
		id uuid.UUID,
		patch domain.RulePatch,
	) (*domain.TaskRule, error)

	// GetTaskRule returns a rule of the actor's organization.
	GetTaskRule(ctx context.Context, actor uuid.UUID, id uuid.UUID) (*domain.TaskRule, error)
}

type ruleServiceImpl struct {
	rules    store.RuleStore
	tx       store.Transactor
	guard    *Guard
	horizon  *generation.Horizon
	mutator  *ruleMutator
	logger   *slog.Logger
	timeFunc func() time.Time
}

var _ RuleService = (*ruleServiceImpl)(nil)

// RuleServiceDeps groups the collaborators of the rule service.
type RuleServiceDeps struct {
	Rules     store.RuleStore
	Tasks     store.TaskStore
	Tx        store.Transactor
	Guard     *Guard
	Generator *generation.Generator
	Horizon   *generation.Horizon
	Flows     *FlowTaskCoordinator
}

// NewRuleService creates a RuleService.
func NewRuleService(deps RuleServiceDeps, logger *slog.Logger, opts ...Option) RuleService {
	if deps.Rules == nil {
		panic("rules cannot be nil")
	}
	if deps.Tasks == nil {
		panic("tasks cannot be nil")
	}
	if deps.Tx == nil {
		panic("tx cannot be nil")
	}
	if deps.Guard == nil {
		panic("guard cannot be nil")
	}
	if deps.Generator == nil || deps.Horizon == nil || deps.Flows == nil {
		panic("generation collaborators cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "rule_service"))
	o := buildOptions(opts)

	return &ruleServiceImpl{
		rules:   deps.Rules,
		tx:      deps.Tx,
		guard:   deps.Guard,
		horizon: deps.Horizon,
		mutator: &ruleMutator{
			rules:     deps.Rules,
			tasks:     deps.Tasks,
			generator: deps.Generator,
			horizon:   deps.Horizon,
			flows:     deps.Flows,
			logger:    logger,
		},
		logger:   logger,
		timeFunc: o.timeFunc,
	}
}

// CreateTaskRule implements RuleService.CreateTaskRule.
func (s *ruleServiceImpl) CreateTaskRule(
	ctx context.Context,
	actor uuid.UUID,
	rule *domain.TaskRule,
) (*domain.TaskRule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("creating task rule", slog.String("user_id", actor.String()))

	org, err := s.guard.Authorize(ctx, actor, ResourceTaskRule, GrantCreate)
	if err != nil {
		return nil, err
	}

	now := s.timeFunc().UTC()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.OrganizationID = org
	rule.ValidFrom = domain.DateOf(rule.ValidFrom)
	if rule.ValidTo != nil {
		v := domain.DateOf(*rule.ValidTo)
		rule.ValidTo = &v
	}
	rule.GeneratedUntil = nil
	rule.CreatedUser = actor
	rule.ModifiedUser = actor
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.rules.Create(ctx, rule); err != nil {
			return err
		}
		return s.horizon.Extend(ctx, []*domain.TaskRule{rule}, now, actor)
	})
	if err != nil {
		log.Error("failed to create task rule", slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTaskRule, "create", err)
	}

	log.Info("task rule created",
		slog.String("rule_id", rule.ID.String()),
		slog.String("user_id", actor.String()))
	return rule, nil
}

// UpdateTaskRule implements RuleService.UpdateTaskRule.
func (s *ruleServiceImpl) UpdateTaskRule(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	patch domain.RulePatch,
) (*domain.TaskRule, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	log.Debug("updating task rule",
		slog.String("rule_id", id.String()),
		slog.String("user_id", actor.String()))

	org, err := s.guard.Authorize(ctx, actor, ResourceTaskRule, GrantUpdate)
	if err != nil {
		return nil, err
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.TaskRule
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if current.OrganizationID != org {
			return ErrNotOwned
		}
		updated, err = s.mutator.apply(ctx, current, patch, actor, s.timeFunc())
		return err
	})
	if err != nil {
		if passThrough(err, store.ErrRuleNotFound, ErrNotOwned, domain.ErrValidation) {
			return nil, err
		}
		log.Error("failed to update task rule",
			slog.String("rule_id", id.String()),
			slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTaskRule, "update", err)
	}

	log.Info("task rule updated",
		slog.String("rule_id", id.String()),
		slog.String("user_id", actor.String()))
	return updated, nil
}

// GetTaskRule implements RuleService.GetTaskRule.
func (s *ruleServiceImpl) GetTaskRule(ctx context.Context, actor uuid.UUID, id uuid.UUID) (*domain.TaskRule, error) {
	org, err := s.guard.Authorize(ctx, actor, ResourceTaskRule, GrantRead)
	if err != nil {
		return nil, err
	}
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			return nil, err
		}
		return nil, NewServiceError(ResourceTaskRule, "get", err)
	}
	if rule.OrganizationID != org {
		return nil, ErrNotOwned
	}
	return rule, nil
}
