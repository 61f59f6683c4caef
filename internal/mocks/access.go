package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/store"
)

var _ store.AccessStore = (*MockAccess)(nil)

// MockAccess is an in-memory directory and grant table. Every known user
// holds every grant unless Deny was called for it.
type MockAccess struct {
	mu     sync.Mutex
	Orgs   map[uuid.UUID]uuid.UUID
	denied map[string]bool

	// Err is returned from every call when set
	Err error
}

// NewMockAccess creates a MockAccess placing every user in org.
func NewMockAccess(org uuid.UUID, users ...uuid.UUID) *MockAccess {
	m := &MockAccess{
		Orgs:   make(map[uuid.UUID]uuid.UUID),
		denied: make(map[string]bool),
	}
	for _, u := range users {
		m.Orgs[u] = org
	}
	return m
}

// AddUser places userID in org.
func (m *MockAccess) AddUser(userID, org uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orgs[userID] = org
}

// Deny withdraws grant on resource from userID.
func (m *MockAccess) Deny(userID uuid.UUID, resource, grant string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.denied[grantKey(userID, resource, grant)] = true
}

// OrganizationOf implements store.AccessStore and service.Directory.
func (m *MockAccess) OrganizationOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return uuid.Nil, m.Err
	}
	org, ok := m.Orgs[userID]
	if !ok {
		return uuid.Nil, store.ErrUserNotFound
	}
	return org, nil
}

// HasGrant implements store.AccessStore.
func (m *MockAccess) HasGrant(ctx context.Context, userID uuid.UUID, resource, grant string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Orgs[userID]; !ok {
		return false, nil
	}
	return !m.denied[grantKey(userID, resource, grant)], nil
}

// IsAuthorized implements service.Authorizer.
func (m *MockAccess) IsAuthorized(ctx context.Context, userID uuid.UUID, resource, grant string) (bool, error) {
	return m.HasGrant(ctx, userID, resource, grant)
}

func grantKey(userID uuid.UUID, resource, grant string) string {
	return userID.String() + "|" + resource + "|" + grant
}
