package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// Resource codes checked by Authorizer.
const (
	ResourceTaskRule     = "task_rule"
	ResourceTask         = "task"
	ResourceTaskPlanning = "task_planning"
)

// Grants checked by Authorizer.
const (
	GrantCreate = "create"
	GrantRead   = "read"
	GrantUpdate = "update"
)

// Authorizer answers whether a user holds a grant on a resource.
type Authorizer interface {
	IsAuthorized(ctx context.Context, userID uuid.UUID, resource, grant string) (bool, error)
}

// Directory resolves organization membership.
type Directory interface {
	OrganizationOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// StoreAuthorizer adapts a store.AccessStore to Authorizer.
type StoreAuthorizer struct {
	Access store.AccessStore
}

var _ Authorizer = StoreAuthorizer{}

// IsAuthorized implements Authorizer.
func (a StoreAuthorizer) IsAuthorized(
	ctx context.Context,
	userID uuid.UUID,
	resource, grant string,
) (bool, error) {
	return a.Access.HasGrant(ctx, userID, resource, grant)
}

// Guard combines the authorization check with organization lookup, which
// every operation performs before touching data.
type Guard struct {
	auth      Authorizer
	directory Directory
}

// NewGuard creates a Guard.
func NewGuard(auth Authorizer, directory Directory) *Guard {
	if auth == nil {
		panic("auth cannot be nil")
	}
	if directory == nil {
		panic("directory cannot be nil")
	}
	return &Guard{auth: auth, directory: directory}
}

// Authorize checks that userID holds grant on resource and returns the
// user's organization.
func (g *Guard) Authorize(ctx context.Context, userID uuid.UUID, resource, grant string) (uuid.UUID, error) {
	ok, err := g.auth.IsAuthorized(ctx, userID, resource, grant)
	if err != nil {
		return uuid.Nil, fmt.Errorf("authorization check failed: %w", err)
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s %s", ErrForbidden, grant, resource)
	}
	return g.directory.OrganizationOf(ctx, userID)
}

// SameOrganization returns ErrNotOwned unless userID belongs to orgID.
func (g *Guard) SameOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	org, err := g.directory.OrganizationOf(ctx, userID)
	if err != nil {
		return err
	}
	if org != orgID {
		return ErrNotOwned
	}
	return nil
}
