package mocks

import (
	"context"
	"sync"
)

// Snapshotter is implemented by the in-memory stores. Snapshot captures the
// current state and returns a function that restores it.
type Snapshotter interface {
	Snapshot() func()
}

type mockTxKey struct{}

// MockTransactor implements store.Transactor over in-memory stores.
// It is reentrant like the SQL implementation: nested calls run inline in the
// outer scope. When the outermost function fails or panics, every registered
// store is restored to its state at the start of the scope.
type MockTransactor struct {
	stores []Snapshotter

	mu        sync.Mutex
	Begins    int
	Commits   int
	Rollbacks int
}

// NewMockTransactor creates a transactor that snapshots the given stores.
func NewMockTransactor(stores ...Snapshotter) *MockTransactor {
	return &MockTransactor{stores: stores}
}

// InTransaction reports whether ctx carries an active mock scope.
func InTransaction(ctx context.Context) bool {
	active, _ := ctx.Value(mockTxKey{}).(bool)
	return active
}

// RunInTransaction implements store.Transactor.
func (m *MockTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	m.Begins++
	m.mu.Unlock()

	restores := make([]func(), 0, len(m.stores))
	for _, s := range m.stores {
		restores = append(restores, s.Snapshot())
	}
	rollback := func() {
		for _, restore := range restores {
			restore()
		}
		m.mu.Lock()
		m.Rollbacks++
		m.mu.Unlock()
	}

	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, mockTxKey{}, true)); err != nil {
		rollback()
		return err
	}

	m.mu.Lock()
	m.Commits++
	m.mu.Unlock()
	return nil
}
