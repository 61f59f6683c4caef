package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
)

// TaskFilter narrows bulk operations over the tasks generated from a rule.
// From is inclusive and To exclusive; a nil bound is unbounded.
type TaskFilter struct {
	RuleID uuid.UUID
	From   *time.Time
	To     *time.Time
}

// RuleTaskFields carries the display fields copied from a rule onto its
// unmodified tasks. Nil fields are left untouched.
type RuleTaskFields struct {
	Title            *string
	Description      *string
	Duration         *int
	IsBackgroundTask *bool
}

// IsEmpty reports whether no field is set.
func (f RuleTaskFields) IsEmpty() bool {
	return f.Title == nil && f.Description == nil && f.Duration == nil && f.IsBackgroundTask == nil
}

// TaskStore defines the interface for task data persistence.
// Every method joins the transaction carried by ctx when one is active.
type TaskStore interface {
	// Create saves a single task.
	Create(ctx context.Context, task *domain.Task) error

	// CreateMultiple saves several tasks atomically: either all are stored or none.
	CreateMultiple(ctx context.Context, tasks []*domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// Update replaces every mutable column of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task. Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListByRule returns the tasks generated from a rule inside the filter window,
	// ordered by expected start date.
	ListByRule(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// FindByRuleAndDate returns the task of a rule whose expected start date falls
	// on the given calendar day. Returns ErrTaskNotFound if there is none.
	FindByRuleAndDate(ctx context.Context, ruleID uuid.UUID, date time.Time) (*domain.Task, error)

	// UpdateAssignees replaces the assignee set of a task without marking it modified.
	UpdateAssignees(ctx context.Context, id uuid.UUID, assignees []uuid.UUID, modifiedBy uuid.UUID) error

	// DeleteUnmodified removes the unmodified tasks of a rule inside the filter
	// window and returns the number of rows removed.
	DeleteUnmodified(ctx context.Context, filter TaskFilter) (int64, error)

	// PatchUnmodified copies fields onto the unmodified tasks of a rule and
	// returns the number of rows changed.
	PatchUnmodified(ctx context.Context, filter TaskFilter, fields RuleTaskFields) (int64, error)

	// RescheduleUnmodified moves the unmodified tasks of a rule to a new time of
	// day, keeping their calendar day and duration.
	RescheduleUnmodified(ctx context.Context, filter TaskFilter, startTime domain.TimeOfDay) (int64, error)

	// ListNewOnDateForFlow returns the New tasks on a calendar day that are either
	// tied to flowID directly or generated from one of ruleIDs.
	ListNewOnDateForFlow(
		ctx context.Context,
		date time.Time,
		flowID uuid.UUID,
		ruleIDs []uuid.UUID,
	) ([]*domain.Task, error)

	// ListForUsers returns the tasks of an organization assigned to any of userIDs
	// with an expected start date in [from, to).
	ListForUsers(
		ctx context.Context,
		organizationID uuid.UUID,
		userIDs []uuid.UUID,
		from, to time.Time,
	) ([]*domain.Task, error)

	// ListBusy returns the in-progress foreground tasks started by a user.
	ListBusy(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)

	// FindOldestPaused returns the paused foreground task started by userID with
	// the earliest actual start date, skipping excludeID.
	// Returns ErrTaskNotFound if there is none.
	FindOldestPaused(ctx context.Context, userID uuid.UUID, excludeID uuid.UUID) (*domain.Task, error)
}
