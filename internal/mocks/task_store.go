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

var _ store.TaskStore = (*MockTaskStore)(nil)

// MockTaskStore is an in-memory store.TaskStore. Tasks are cloned on the way
// in and out so that callers observe the same copy semantics as with a database.
type MockTaskStore struct {
	mu     sync.Mutex
	Tasks  map[uuid.UUID]*domain.Task
	errors map[string]error

	// Calls counts invocations per method name
	Calls map[string]int
}

// NewMockTaskStore creates an empty task store.
func NewMockTaskStore(tasks ...*domain.Task) *MockTaskStore {
	m := &MockTaskStore{
		Tasks:  make(map[uuid.UUID]*domain.Task),
		errors: make(map[string]error),
		Calls:  make(map[string]int),
	}
	for _, t := range tasks {
		m.Tasks[t.ID] = t.Clone()
	}
	return m
}

// FailOn makes the named method return err until cleared with a nil err.
func (m *MockTaskStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errors, method)
		return
	}
	m.errors[method] = err
}

// Snapshot implements Snapshotter.
func (m *MockTaskStore) Snapshot() func() {
	m.mu.Lock()
	saved := cloneTasks(m.Tasks)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.Tasks = saved
		m.mu.Unlock()
	}
}

// All returns every stored task ordered by expected start date.
func (m *MockTaskStore) All() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(func(*domain.Task) bool { return true })
}

// Get returns a copy of the stored task, or nil.
func (m *MockTaskStore) Get(id uuid.UUID) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Tasks[id]; ok {
		return t.Clone()
	}
	return nil
}

func (m *MockTaskStore) enter(method string) error {
	m.Calls[method]++
	return m.errors[method]
}

func (m *MockTaskStore) collect(match func(*domain.Task) bool) []*domain.Task {
	var out []*domain.Task
	for _, t := range m.Tasks {
		if match(t) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpectedStartDate.Equal(out[j].ExpectedStartDate) {
			return out[i].ExpectedStartDate.Before(out[j].ExpectedStartDate)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Create"); err != nil {
		return err
	}
	if err := task.Validate(); err != nil {
		return err
	}
	m.Tasks[task.ID] = task.Clone()
	return nil
}

// CreateMultiple implements store.TaskStore.
func (m *MockTaskStore) CreateMultiple(ctx context.Context, tasks []*domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreateMultiple"); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		m.Tasks[t.ID] = t.Clone()
	}
	return nil
}

// GetByID implements store.TaskStore.
func (m *MockTaskStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("GetByID"); err != nil {
		return nil, err
	}
	t, ok := m.Tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Update implements store.TaskStore.
func (m *MockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Update"); err != nil {
		return err
	}
	if _, ok := m.Tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	m.Tasks[task.ID] = task.Clone()
	return nil
}

// Delete implements store.TaskStore.
func (m *MockTaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Delete"); err != nil {
		return err
	}
	if _, ok := m.Tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.Tasks, id)
	return nil
}

// ListByRule implements store.TaskStore.
func (m *MockTaskStore) ListByRule(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListByRule"); err != nil {
		return nil, err
	}
	return m.collect(func(t *domain.Task) bool { return inFilter(t, filter) }), nil
}

// FindByRuleAndDate implements store.TaskStore.
func (m *MockTaskStore) FindByRuleAndDate(ctx context.Context, ruleID uuid.UUID, date time.Time) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindByRuleAndDate"); err != nil {
		return nil, err
	}
	day := domain.DateOf(date)
	found := m.collect(func(t *domain.Task) bool {
		return t.RuleID != nil && *t.RuleID == ruleID && t.Date().Equal(day)
	})
	if len(found) == 0 {
		return nil, store.ErrTaskNotFound
	}
	return found[0], nil
}

// UpdateAssignees implements store.TaskStore.
func (m *MockTaskStore) UpdateAssignees(
	ctx context.Context,
	id uuid.UUID,
	assignees []uuid.UUID,
	modifiedBy uuid.UUID,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("UpdateAssignees"); err != nil {
		return err
	}
	t, ok := m.Tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	t.AssignedTo = slices.Clone(assignees)
	t.ModifiedUser = modifiedBy
	return nil
}

// DeleteUnmodified implements store.TaskStore.
func (m *MockTaskStore) DeleteUnmodified(ctx context.Context, filter store.TaskFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("DeleteUnmodified"); err != nil {
		return 0, err
	}
	var n int64
	for id, t := range m.Tasks {
		if t.IsUnmodified() && inFilter(t, filter) {
			delete(m.Tasks, id)
			n++
		}
	}
	return n, nil
}

// PatchUnmodified implements store.TaskStore.
func (m *MockTaskStore) PatchUnmodified(
	ctx context.Context,
	filter store.TaskFilter,
	fields store.RuleTaskFields,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PatchUnmodified"); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range m.Tasks {
		if !t.IsUnmodified() || !inFilter(t, filter) {
			continue
		}
		if fields.Title != nil {
			t.Title = *fields.Title
		}
		if fields.Description != nil {
			t.Description = *fields.Description
		}
		if fields.Duration != nil {
			t.Duration = *fields.Duration
			finish := t.ExpectedStartDate.Add(time.Duration(t.Duration) * time.Minute)
			t.ExpectedFinishDate = &finish
		}
		if fields.IsBackgroundTask != nil {
			t.IsBackgroundTask = *fields.IsBackgroundTask
		}
		n++
	}
	return n, nil
}

// RescheduleUnmodified implements store.TaskStore.
func (m *MockTaskStore) RescheduleUnmodified(
	ctx context.Context,
	filter store.TaskFilter,
	startTime domain.TimeOfDay,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RescheduleUnmodified"); err != nil {
		return 0, err
	}
	var n int64
	for _, t := range m.Tasks {
		if !t.IsUnmodified() || !inFilter(t, filter) {
			continue
		}
		t.ExpectedStartDate = startTime.On(t.ExpectedStartDate)
		finish := t.ExpectedStartDate.Add(time.Duration(t.Duration) * time.Minute)
		t.ExpectedFinishDate = &finish
		n++
	}
	return n, nil
}

// ListNewOnDateForFlow implements store.TaskStore.
func (m *MockTaskStore) ListNewOnDateForFlow(
	ctx context.Context,
	date time.Time,
	flowID uuid.UUID,
	ruleIDs []uuid.UUID,
) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListNewOnDateForFlow"); err != nil {
		return nil, err
	}
	day := domain.DateOf(date)
	return m.collect(func(t *domain.Task) bool {
		if t.Status != domain.TaskStatusNew || !t.Date().Equal(day) {
			return false
		}
		if t.FlowID != nil && *t.FlowID == flowID {
			return true
		}
		return t.RuleID != nil && slices.Contains(ruleIDs, *t.RuleID)
	}), nil
}

// ListForUsers implements store.TaskStore.
func (m *MockTaskStore) ListForUsers(
	ctx context.Context,
	organizationID uuid.UUID,
	userIDs []uuid.UUID,
	from, to time.Time,
) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListForUsers"); err != nil {
		return nil, err
	}
	return m.collect(func(t *domain.Task) bool {
		if t.OrganizationID != organizationID {
			return false
		}
		if t.ExpectedStartDate.Before(from) || !t.ExpectedStartDate.Before(to) {
			return false
		}
		return slices.ContainsFunc(t.AssignedTo, func(id uuid.UUID) bool {
			return slices.Contains(userIDs, id)
		})
	}), nil
}

// ListBusy implements store.TaskStore.
func (m *MockTaskStore) ListBusy(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("ListBusy"); err != nil {
		return nil, err
	}
	return m.collect(func(t *domain.Task) bool {
		return t.Status == domain.TaskStatusInProgress && !t.IsBackgroundTask &&
			t.UserStarted != nil && *t.UserStarted == userID
	}), nil
}

// FindOldestPaused implements store.TaskStore.
func (m *MockTaskStore) FindOldestPaused(
	ctx context.Context,
	userID uuid.UUID,
	excludeID uuid.UUID,
) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FindOldestPaused"); err != nil {
		return nil, err
	}
	paused := m.collect(func(t *domain.Task) bool {
		return t.Status == domain.TaskStatusPaused && !t.IsBackgroundTask && t.ID != excludeID &&
			t.UserStarted != nil && *t.UserStarted == userID
	})
	if len(paused) == 0 {
		return nil, store.ErrTaskNotFound
	}
	sort.SliceStable(paused, func(i, j int) bool {
		a, b := paused[i].ActualStartDate, paused[j].ActualStartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return paused[0], nil
}

func inFilter(t *domain.Task, filter store.TaskFilter) bool {
	if t.RuleID == nil || *t.RuleID != filter.RuleID {
		return false
	}
	if filter.From != nil && t.ExpectedStartDate.Before(*filter.From) {
		return false
	}
	if filter.To != nil && !t.ExpectedStartDate.Before(*filter.To) {
		return false
	}
	return true
}

func cloneTasks(in map[uuid.UUID]*domain.Task) map[uuid.UUID]*domain.Task {
	out := maps.Clone(in)
	for id, t := range out {
		out[id] = t.Clone()
	}
	return out
}
