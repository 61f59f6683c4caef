package mocks

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/store"
)

var _ store.PlanningStore = (*MockPlanningStore)(nil)

// MockPlanningStore is an in-memory store.PlanningStore.
type MockPlanningStore struct {
	mu        sync.Mutex
	Plannings map[uuid.UUID]*domain.TaskPlanning
	errors    map[string]error
}

// NewMockPlanningStore creates a planning store holding copies of plannings.
func NewMockPlanningStore(plannings ...*domain.TaskPlanning) *MockPlanningStore {
	m := &MockPlanningStore{
		Plannings: make(map[uuid.UUID]*domain.TaskPlanning),
		errors:    make(map[string]error),
	}
	for _, p := range plannings {
		m.Plannings[p.ID] = clonePlanning(p)
	}
	return m
}

// FailOn makes the named method return err until cleared with a nil err.
func (m *MockPlanningStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Snapshot implements Snapshotter.
func (m *MockPlanningStore) Snapshot() func() {
	m.mu.Lock()
	saved := maps.Clone(m.Plannings)
	for id, p := range saved {
		saved[id] = clonePlanning(p)
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.Plannings = saved
		m.mu.Unlock()
	}
}

// Create implements store.PlanningStore.
func (m *MockPlanningStore) Create(ctx context.Context, planning *domain.TaskPlanning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Create"]; err != nil {
		return err
	}
	for _, p := range m.Plannings {
		if p.UserID == planning.UserID && p.Date.Equal(domain.DateOf(planning.Date)) {
			return store.ErrPlanningExists
		}
	}
	c := clonePlanning(planning)
	c.Date = domain.DateOf(c.Date)
	m.Plannings[planning.ID] = c
	return nil
}

// GetByID implements store.PlanningStore.
func (m *MockPlanningStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskPlanning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["GetByID"]; err != nil {
		return nil, err
	}
	p, ok := m.Plannings[id]
	if !ok {
		return nil, store.ErrPlanningNotFound
	}
	return clonePlanning(p), nil
}

// Update implements store.PlanningStore.
func (m *MockPlanningStore) Update(ctx context.Context, planning *domain.TaskPlanning) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Update"]; err != nil {
		return err
	}
	if _, ok := m.Plannings[planning.ID]; !ok {
		return store.ErrPlanningNotFound
	}
	m.Plannings[planning.ID] = clonePlanning(planning)
	return nil
}

// FindByUserAndDate implements store.PlanningStore.
func (m *MockPlanningStore) FindByUserAndDate(
	ctx context.Context,
	userID uuid.UUID,
	date time.Time,
) (*domain.TaskPlanning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["FindByUserAndDate"]; err != nil {
		return nil, err
	}
	for _, p := range m.Plannings {
		if p.UserID == userID && p.Date.Equal(domain.DateOf(date)) {
			return clonePlanning(p), nil
		}
	}
	return nil, store.ErrPlanningNotFound
}

// ListByFlow implements store.PlanningStore.
func (m *MockPlanningStore) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskPlanning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["ListByFlow"]; err != nil {
		return nil, err
	}
	var out []*domain.TaskPlanning
	for _, p := range m.Plannings {
		if p.HasFlow(flowID) {
			out = append(out, clonePlanning(p))
		}
	}
	slices.SortFunc(out, func(a, b *domain.TaskPlanning) int {
		return a.Date.Compare(b.Date)
	})
	return out, nil
}

func clonePlanning(p *domain.TaskPlanning) *domain.TaskPlanning {
	c := *p
	c.Flows = slices.Clone(p.Flows)
	return &c
}
