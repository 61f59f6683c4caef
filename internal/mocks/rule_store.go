package mocks

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/store"
)

var _ store.RuleStore = (*MockRuleStore)(nil)

// MockRuleStore is an in-memory store.RuleStore.
type MockRuleStore struct {
	mu     sync.Mutex
	Rules  map[uuid.UUID]*domain.TaskRule
	errors map[string]error
}

// NewMockRuleStore creates a rule store holding copies of rules.
func NewMockRuleStore(rules ...*domain.TaskRule) *MockRuleStore {
	m := &MockRuleStore{
		Rules:  make(map[uuid.UUID]*domain.TaskRule),
		errors: make(map[string]error),
	}
	for _, r := range rules {
		m.Rules[r.ID] = r.Clone()
	}
	return m
}

// FailOn makes the named method return err until cleared with a nil err.
func (m *MockRuleStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Snapshot implements Snapshotter.
func (m *MockRuleStore) Snapshot() func() {
	m.mu.Lock()
	saved := maps.Clone(m.Rules)
	for id, r := range saved {
		saved[id] = r.Clone()
	}
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.Rules = saved
		m.mu.Unlock()
	}
}

// Get returns a copy of the stored rule, or nil.
func (m *MockRuleStore) Get(id uuid.UUID) *domain.TaskRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.Rules[id]; ok {
		return r.Clone()
	}
	return nil
}

func (m *MockRuleStore) collect(match func(*domain.TaskRule) bool) []*domain.TaskRule {
	var out []*domain.TaskRule
	for _, r := range m.Rules {
		if match(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Create implements store.RuleStore.
func (m *MockRuleStore) Create(ctx context.Context, rule *domain.TaskRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Create"]; err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	m.Rules[rule.ID] = rule.Clone()
	return nil
}

// GetByID implements store.RuleStore.
func (m *MockRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["GetByID"]; err != nil {
		return nil, err
	}
	r, ok := m.Rules[id]
	if !ok {
		return nil, store.ErrRuleNotFound
	}
	return r.Clone(), nil
}

// Update implements store.RuleStore.
func (m *MockRuleStore) Update(ctx context.Context, rule *domain.TaskRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["Update"]; err != nil {
		return err
	}
	if _, ok := m.Rules[rule.ID]; !ok {
		return store.ErrRuleNotFound
	}
	m.Rules[rule.ID] = rule.Clone()
	return nil
}

// UpdateGeneratedUntil implements store.RuleStore.
func (m *MockRuleStore) UpdateGeneratedUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["UpdateGeneratedUntil"]; err != nil {
		return err
	}
	r, ok := m.Rules[id]
	if !ok {
		return store.ErrRuleNotFound
	}
	u := until
	r.GeneratedUntil = &u
	return nil
}

// ListByFlow implements store.RuleStore.
func (m *MockRuleStore) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["ListByFlow"]; err != nil {
		return nil, err
	}
	return m.collect(func(r *domain.TaskRule) bool {
		return slices.Contains(r.Flows, flowID)
	}), nil
}

// ListForUsers implements store.RuleStore.
func (m *MockRuleStore) ListForUsers(
	ctx context.Context,
	organizationID uuid.UUID,
	userIDs []uuid.UUID,
	from, to time.Time,
) ([]*domain.TaskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["ListForUsers"]; err != nil {
		return nil, err
	}
	return m.collect(func(r *domain.TaskRule) bool {
		if r.OrganizationID != organizationID || !r.ValidFrom.Before(to) {
			return false
		}
		if r.ValidTo != nil && !r.ValidTo.After(from) {
			return false
		}
		return slices.ContainsFunc(r.Users, func(id uuid.UUID) bool {
			return slices.Contains(userIDs, id)
		})
	}), nil
}

// ListHorizonDue implements store.RuleStore.
func (m *MockRuleStore) ListHorizonDue(ctx context.Context, before time.Time) ([]*domain.TaskRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errors["ListHorizonDue"]; err != nil {
		return nil, err
	}
	return m.collect(func(r *domain.TaskRule) bool {
		start := r.HorizonStart()
		if !start.Before(before) {
			return false
		}
		return r.ValidTo == nil || start.Before(*r.ValidTo)
	}), nil
}
