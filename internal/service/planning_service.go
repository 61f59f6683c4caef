package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/logger"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// PlanningInput is the data of a new planning item.
type PlanningInput struct {
	Date   time.Time
	UserID uuid.UUID
	Flows  []uuid.UUID
}

// PlanningService manages per-user, per-day flow assignments and the flow
// tasks that follow from them.
type PlanningService interface {
	// CreateTaskPlanningItem stores the planning and generates the flow tasks
	// of each listed flow. Returns store.ErrPlanningExists when the user
	// already has a planning on that date.
	CreateTaskPlanningItem(ctx context.Context, actor uuid.UUID, input PlanningInput) (*domain.TaskPlanning, error)

	// AddFlowToPlanning adds flowID to the planning and generates its tasks.
	// Adding a flow already present changes nothing.
	AddFlowToPlanning(ctx context.Context, actor uuid.UUID, planningID, flowID uuid.UUID) (*domain.TaskPlanning, error)

	// RemoveFlowFromPlanning removes flowID from the planning and its New tasks
	// for the planned user.
	RemoveFlowFromPlanning(
		ctx context.Context,
		actor uuid.UUID,
		planningID, flowID uuid.UUID,
	) (*domain.TaskPlanning, error)
}

type planningServiceImpl struct {
	plannings store.PlanningStore
	tx        store.Transactor
	guard     *Guard
	flows     *FlowTaskCoordinator
	logger    *slog.Logger
	timeFunc  func() time.Time
}

var _ PlanningService = (*planningServiceImpl)(nil)

// NewPlanningService creates a PlanningService.
func NewPlanningService(
	plannings store.PlanningStore,
	tx store.Transactor,
	guard *Guard,
	flows *FlowTaskCoordinator,
	logger *slog.Logger,
	opts ...Option,
) PlanningService {
	if plannings == nil {
		panic("plannings cannot be nil")
	}
	if tx == nil {
		panic("tx cannot be nil")
	}
	if guard == nil {
		panic("guard cannot be nil")
	}
	if flows == nil {
		panic("flows cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := buildOptions(opts)
	return &planningServiceImpl{
		plannings: plannings,
		tx:        tx,
		guard:     guard,
		flows:     flows,
		logger:    logger.With(slog.String("component", "planning_service")),
		timeFunc:  o.timeFunc,
	}
}

// CreateTaskPlanningItem implements PlanningService.CreateTaskPlanningItem.
func (s *planningServiceImpl) CreateTaskPlanningItem(
	ctx context.Context,
	actor uuid.UUID,
	input PlanningInput,
) (*domain.TaskPlanning, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	org, err := s.guard.Authorize(ctx, actor, ResourceTaskPlanning, GrantCreate)
	if err != nil {
		return nil, err
	}
	if err := domain.Validate(domain.Require(len(input.Flows) > 0, "at least one flow is required")); err != nil {
		return nil, err
	}
	if input.UserID != uuid.Nil {
		if err := s.guard.SameOrganization(ctx, input.UserID, org); err != nil {
			return nil, err
		}
	}

	now := s.timeFunc().UTC()
	planning := &domain.TaskPlanning{
		ID:             uuid.New(),
		Date:           domain.DateOf(input.Date),
		UserID:         input.UserID,
		Flows:          uniqueIDs(input.Flows),
		OrganizationID: org,
		CreatedUser:    actor,
		ModifiedUser:   actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := planning.Validate(); err != nil {
		return nil, err
	}

	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.plannings.Create(ctx, planning); err != nil {
			return err
		}
		for _, flowID := range planning.Flows {
			if _, err := s.flows.CreateFlowTasks(ctx, flowID, planning.Date, planning.UserID, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if passThrough(err, store.ErrPlanningExists) {
			return nil, err
		}
		log.Error("failed to create task planning", slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTaskPlanning, "create", err)
	}

	log.Info("task planning created",
		slog.String("planning_id", planning.ID.String()),
		slog.String("user_id", planning.UserID.String()),
		slog.Int("flows", len(planning.Flows)))
	return planning, nil
}

// AddFlowToPlanning implements PlanningService.AddFlowToPlanning.
func (s *planningServiceImpl) AddFlowToPlanning(
	ctx context.Context,
	actor uuid.UUID,
	planningID, flowID uuid.UUID,
) (*domain.TaskPlanning, error) {
	return s.changeFlows(ctx, actor, planningID, "add_flow", func(ctx context.Context, p *domain.TaskPlanning) error {
		if p.HasFlow(flowID) {
			return nil
		}
		p.Flows = append(p.Flows, flowID)
		if err := s.save(ctx, p, actor); err != nil {
			return err
		}
		_, err := s.flows.CreateFlowTasks(ctx, flowID, p.Date, p.UserID, actor)
		return err
	})
}

// RemoveFlowFromPlanning implements PlanningService.RemoveFlowFromPlanning.
func (s *planningServiceImpl) RemoveFlowFromPlanning(
	ctx context.Context,
	actor uuid.UUID,
	planningID, flowID uuid.UUID,
) (*domain.TaskPlanning, error) {
	return s.changeFlows(ctx, actor, planningID, "remove_flow", func(ctx context.Context, p *domain.TaskPlanning) error {
		if !p.HasFlow(flowID) {
			return nil
		}
		p.Flows = slices.DeleteFunc(p.Flows, func(id uuid.UUID) bool { return id == flowID })
		if err := s.save(ctx, p, actor); err != nil {
			return err
		}
		return s.flows.RemoveFlowTasks(ctx, flowID, p.Date, p.UserID, actor)
	})
}

func (s *planningServiceImpl) changeFlows(
	ctx context.Context,
	actor uuid.UUID,
	planningID uuid.UUID,
	op string,
	change func(ctx context.Context, p *domain.TaskPlanning) error,
) (*domain.TaskPlanning, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	org, err := s.guard.Authorize(ctx, actor, ResourceTaskPlanning, GrantUpdate)
	if err != nil {
		return nil, err
	}

	var planning *domain.TaskPlanning
	err = s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.plannings.GetByID(ctx, planningID)
		if err != nil {
			return err
		}
		if p.OrganizationID != org {
			return ErrNotOwned
		}
		if err := change(ctx, p); err != nil {
			return err
		}
		planning = p
		return nil
	})
	if err != nil {
		if passThrough(err, store.ErrPlanningNotFound, ErrNotOwned) {
			return nil, err
		}
		log.Error("failed to change planning flows",
			slog.String("planning_id", planningID.String()),
			slog.String("operation", op),
			slog.String("error", err.Error()))
		return nil, NewServiceError(ResourceTaskPlanning, op, err)
	}

	log.Info("task planning flows changed",
		slog.String("planning_id", planningID.String()),
		slog.String("operation", op))
	return planning, nil
}

func (s *planningServiceImpl) save(ctx context.Context, p *domain.TaskPlanning, actor uuid.UUID) error {
	p.ModifiedUser = actor
	p.UpdatedAt = s.timeFunc().UTC()
	return s.plannings.Update(ctx, p)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
