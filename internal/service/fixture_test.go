package service_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/mocks"
	"github.com/phrazzld/taskplan-api/internal/service"
)

var (
	org      = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	otherOrg = uuid.MustParse("00000000-0000-0000-0000-0000000000b2")
	u1       = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	u2       = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	u3       = uuid.MustParse("00000000-0000-0000-0000-000000000003")
	outsider = uuid.MustParse("00000000-0000-0000-0000-000000000009")
	flowA    = uuid.MustParse("00000000-0000-0000-0000-0000000000fa")

	// 2024-01-01 is a Monday.
	jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now  = jan1.Add(8 * time.Hour)
)

func day(n int) time.Time {
	return jan1.AddDate(0, 0, n-1)
}

type fixture struct {
	rules     *mocks.MockRuleStore
	tasks     *mocks.MockTaskStore
	plannings *mocks.MockPlanningStore
	access    *mocks.MockAccess
	tx        *mocks.MockTransactor

	flows    *service.FlowTaskCoordinator
	rule     service.RuleService
	task     service.TaskService
	planning service.PlanningService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return now }

	f := &fixture{
		rules:     mocks.NewMockRuleStore(),
		tasks:     mocks.NewMockTaskStore(),
		plannings: mocks.NewMockPlanningStore(),
		access:    mocks.NewMockAccess(org, u1, u2, u3),
	}
	f.access.AddUser(outsider, otherOrg)
	f.tx = mocks.NewMockTransactor(f.rules, f.tasks, f.plannings)

	guard := service.NewGuard(f.access, f.access)
	generator := generation.NewGenerator(f.tasks, logger, generation.WithTimeFunc(clock))
	horizon := generation.NewHorizon(f.rules, f.tasks, generator, f.tx, logger, generation.WithTimeFunc(clock))
	f.flows = service.NewFlowTaskCoordinator(f.rules, f.tasks, f.plannings, generator, f.tx, logger)

	f.rule = service.NewRuleService(service.RuleServiceDeps{
		Rules:     f.rules,
		Tasks:     f.tasks,
		Tx:        f.tx,
		Guard:     guard,
		Generator: generator,
		Horizon:   horizon,
		Flows:     f.flows,
	}, logger, service.WithTimeFunc(clock))
	f.task = service.NewTaskService(f.tasks, f.rules, f.tx, guard, horizon, logger, service.WithTimeFunc(clock))
	f.planning = service.NewPlanningService(f.plannings, f.tx, guard, f.flows, logger, service.WithTimeFunc(clock))
	return f
}

func workdayRule(users ...uuid.UUID) *domain.TaskRule {
	return &domain.TaskRule{
		Title:         "Morning check",
		Type:          domain.RuleTypeDaily,
		DailyType:     domain.DailyTypeWorkday,
		TaskStartTime: domain.TimeOfDay{Hour: 9},
		ValidFrom:     jan1,
		TaskDuration:  30,
		Zone:          "north",
		Users:         users,
	}
}

// storedRule places a rule straight into the store, bypassing generation.
func (f *fixture) storedRule(rule *domain.TaskRule) *domain.TaskRule {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	rule.OrganizationID = org
	rule.CreatedUser = u1
	f.rules.Rules[rule.ID] = rule.Clone()
	return rule
}

func (f *fixture) storedTask(task *domain.Task) *domain.Task {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Title == "" {
		task.Title = "Task"
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusNew
	}
	task.OrganizationID = org
	f.tasks.Tasks[task.ID] = task.Clone()
	return task
}

func (f *fixture) storedPlanning(userID uuid.UUID, date time.Time, flows ...uuid.UUID) *domain.TaskPlanning {
	p := &domain.TaskPlanning{
		ID:             uuid.New(),
		Date:           date,
		UserID:         userID,
		Flows:          flows,
		OrganizationID: org,
		CreatedUser:    u1,
	}
	f.plannings.Plannings[p.ID] = p
	return p
}

func (f *fixture) tasksOfRule(ruleID uuid.UUID) []*domain.Task {
	var out []*domain.Task
	for _, t := range f.tasks.All() {
		if t.RuleID != nil && *t.RuleID == ruleID {
			out = append(out, t)
		}
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
