// Package service contains the application use cases of the task engine.
//
// Services authorize the acting user through a Guard, resolve their
// organization, and orchestrate the generation package and the store
// interfaces inside transaction scopes obtained from a store.Transactor.
// Scopes are reentrant: a service called from inside another service's scope
// joins it, so a whole cascade commits or rolls back as one.
//
// Expected conditions are returned as sentinel errors (ErrNotOwned,
// ErrForbidden, store and domain sentinels) and everything else is wrapped in a
// ServiceError. Status changes live in the task_status subpackage.
package service
