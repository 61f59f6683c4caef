package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/service/task_status"
)

// MockRuleService is a function-field implementation of service.RuleService.
// Methods with no function configured fail the test by panicking.
type MockRuleService struct {
	CreateFn func(ctx context.Context, actor uuid.UUID, rule *domain.TaskRule) (*domain.TaskRule, error)
	UpdateFn func(ctx context.Context, actor, id uuid.UUID, patch domain.RulePatch) (*domain.TaskRule, error)
	GetFn    func(ctx context.Context, actor, id uuid.UUID) (*domain.TaskRule, error)
}

var _ service.RuleService = (*MockRuleService)(nil)

// CreateTaskRule implements service.RuleService.
func (m *MockRuleService) CreateTaskRule(
	ctx context.Context,
	actor uuid.UUID,
	rule *domain.TaskRule,
) (*domain.TaskRule, error) {
	return m.CreateFn(ctx, actor, rule)
}

// UpdateTaskRule implements service.RuleService.
func (m *MockRuleService) UpdateTaskRule(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	patch domain.RulePatch,
) (*domain.TaskRule, error) {
	return m.UpdateFn(ctx, actor, id, patch)
}

// GetTaskRule implements service.RuleService.
func (m *MockRuleService) GetTaskRule(ctx context.Context, actor uuid.UUID, id uuid.UUID) (*domain.TaskRule, error) {
	return m.GetFn(ctx, actor, id)
}

// MockTaskService is a function-field implementation of service.TaskService.
type MockTaskService struct {
	CreateFn func(ctx context.Context, actor uuid.UUID, task *domain.Task) (*domain.Task, error)
	UpdateFn func(ctx context.Context, actor, id uuid.UUID, patch domain.TaskPatch) (*domain.Task, error)
	DailyFn  func(ctx context.Context, actor uuid.UUID, query service.DailyQuery) ([]*domain.Task, error)
	BusyFn   func(ctx context.Context, actor, userID uuid.UUID) ([]*domain.Task, error)
}

var _ service.TaskService = (*MockTaskService)(nil)

// CreateTask implements service.TaskService.
func (m *MockTaskService) CreateTask(ctx context.Context, actor uuid.UUID, task *domain.Task) (*domain.Task, error) {
	return m.CreateFn(ctx, actor, task)
}

// UpdateTask implements service.TaskService.
func (m *MockTaskService) UpdateTask(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	patch domain.TaskPatch,
) (*domain.Task, error) {
	return m.UpdateFn(ctx, actor, id, patch)
}

// GetDailyTasks implements service.TaskService.
func (m *MockTaskService) GetDailyTasks(
	ctx context.Context,
	actor uuid.UUID,
	query service.DailyQuery,
) ([]*domain.Task, error) {
	return m.DailyFn(ctx, actor, query)
}

// GetBusyTasks implements service.TaskService.
func (m *MockTaskService) GetBusyTasks(ctx context.Context, actor uuid.UUID, userID uuid.UUID) ([]*domain.Task, error) {
	return m.BusyFn(ctx, actor, userID)
}

// MockStatusService is a function-field implementation of task_status.Service.
type MockStatusService struct {
	UpdateFn func(
		ctx context.Context,
		actor, id uuid.UUID,
		update task_status.StatusUpdate,
	) (*task_status.Result, error)
}

var _ task_status.Service = (*MockStatusService)(nil)

// UpdateTaskStatus implements task_status.Service.
func (m *MockStatusService) UpdateTaskStatus(
	ctx context.Context,
	actor uuid.UUID,
	id uuid.UUID,
	update task_status.StatusUpdate,
) (*task_status.Result, error) {
	return m.UpdateFn(ctx, actor, id, update)
}

// MockPlanningService is a function-field implementation of service.PlanningService.
type MockPlanningService struct {
	CreateFn     func(ctx context.Context, actor uuid.UUID, input service.PlanningInput) (*domain.TaskPlanning, error)
	AddFlowFn    func(ctx context.Context, actor, planningID, flowID uuid.UUID) (*domain.TaskPlanning, error)
	RemoveFlowFn func(ctx context.Context, actor, planningID, flowID uuid.UUID) (*domain.TaskPlanning, error)
}

var _ service.PlanningService = (*MockPlanningService)(nil)

// CreateTaskPlanningItem implements service.PlanningService.
func (m *MockPlanningService) CreateTaskPlanningItem(
	ctx context.Context,
	actor uuid.UUID,
	input service.PlanningInput,
) (*domain.TaskPlanning, error) {
	return m.CreateFn(ctx, actor, input)
}

// AddFlowToPlanning implements service.PlanningService.
func (m *MockPlanningService) AddFlowToPlanning(
	ctx context.Context,
	actor uuid.UUID,
	planningID, flowID uuid.UUID,
) (*domain.TaskPlanning, error) {
	return m.AddFlowFn(ctx, actor, planningID, flowID)
}

// RemoveFlowFromPlanning implements service.PlanningService.
func (m *MockPlanningService) RemoveFlowFromPlanning(
	ctx context.Context,
	actor uuid.UUID,
	planningID, flowID uuid.UUID,
) (*domain.TaskPlanning, error) {
	return m.RemoveFlowFn(ctx, actor, planningID, flowID)
}
