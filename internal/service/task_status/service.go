// Package task_status applies task status transitions, accounting for time
// spent in progress and resuming a user's oldest paused task when their
// active one ends.
package task_status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
)

// StatusUpdate is a requested status change. The optional dates override
// "now" for the actual start and finish stamps.
type StatusUpdate struct {
	Status           domain.TaskStatus
	ActualStartDate  *time.Time
	ActualFinishDate *time.Time
}

// Result reports the transitioned task and, when ending it resumed another
// task, the resumed one.
type Result struct {
	Result   *domain.Task `json:"result"`
	Unpaused *domain.Task `json:"unpaused,omitempty"`
}

// Service changes task statuses.
type Service interface {
	// UpdateTaskStatus transitions task id to update.Status on behalf of actor.
	//
	// Preconditions, checked before any write: the task exists, the actor holds
	// the task update grant, the status differs from the current one, Paused is
	// only entered from InProgress, and the actor is assigned to the task.
	//
	// When an InProgress task is finished or cancelled, the actor's oldest
	// paused foreground task is resumed in the same transaction and returned
	// as Result.Unpaused. Change notifications are published after commit;
	// publishing failures are logged and do not fail the call.
	UpdateTaskStatus(ctx context.Context, actor uuid.UUID, id uuid.UUID, update StatusUpdate) (*Result, error)
}

// Common error types for Service
var (
	// ErrInvalidTransition indicates the status machine does not allow the change.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotAssigned indicates the acting user is not assigned to the task.
	ErrNotAssigned = errors.New("user is not assigned to task")

	// ErrSameStatus indicates the task already has the requested status.
	ErrSameStatus = errors.New("task already has this status")

	// ErrUnauthorized indicates the acting user may not update tasks.
	ErrUnauthorized = errors.New("user may not update task status")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	TaskID uuid.UUID
	From   domain.TaskStatus
	To     domain.TaskStatus
	Reason string
	Err    error
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot change task %s from %s to %s: %s", e.TaskID, e.From, e.To, e.Reason)
}

// Unwrap returns the sentinel describing the failure.
func (e *TransitionError) Unwrap() error {
	return e.Err
}

func newTransitionError(task *domain.Task, to domain.TaskStatus, reason string, err error) *TransitionError {
	return &TransitionError{
		TaskID: task.ID,
		From:   task.Status,
		To:     to,
		Reason: reason,
		Err:    err,
	}
}
