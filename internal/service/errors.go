package service

import (
	"errors"
	"fmt"
)

// Authorization outcomes a caller can branch on with errors.Is. Both map to
// 403 at the API boundary.
var (
	// ErrNotOwned means the entity belongs to an organization the actor is not in.
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrForbidden means the actor is in the right organization but lacks the grant.
	ErrForbidden = errors.New("operation not permitted for user")
)

// ServiceError tags an unexpected failure with the resource and operation
// being served. Expected conditions are returned bare instead.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewServiceError(resource, op string, err error) *ServiceError {
	return &ServiceError{Service: resource, Op: op, Err: err}
}

// passThrough reports whether err matches one of the expected conditions.
func passThrough(err error, expected ...error) bool {
	for _, e := range expected {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
