package store

import (
	"context"

	"github.com/google/uuid"
)

// AccessStore answers identity and permission questions about users.
type AccessStore interface {
	// OrganizationOf returns the organization a user belongs to.
	// Returns ErrUserNotFound if the user does not exist.
	OrganizationOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)

	// HasGrant reports whether a user holds grant on the named resource.
	HasGrant(ctx context.Context, userID uuid.UUID, resource, grant string) (bool, error)
}
