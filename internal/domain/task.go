package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusNew        TaskStatus = "new"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusPaused     TaskStatus = "paused"
	TaskStatusFinished   TaskStatus = "finished"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task is a concrete occurrence, either generated from a TaskRule, created for
// a flow assignment, or created manually. Durations are in minutes.
type Task struct {
	ID                 uuid.UUID   `json:"id"`
	RuleID             *uuid.UUID  `json:"rule_id,omitempty"`
	FlowID             *uuid.UUID  `json:"flow_id,omitempty"`
	Status             TaskStatus  `json:"status"`
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	Remarks            string      `json:"remarks,omitempty"`
	Priority           int         `json:"priority,omitempty"`
	Zone               string      `json:"zone,omitempty"`
	ExpectedStartDate  time.Time   `json:"expected_start_date"`
	ExpectedFinishDate *time.Time  `json:"expected_finish_date,omitempty"`
	Duration           int         `json:"duration"`
	ActualStartDate    *time.Time  `json:"actual_start_date,omitempty"`
	LastStartDate      *time.Time  `json:"last_start_date,omitempty"`
	ActualDuration     int         `json:"actual_duration"`
	ActualFinishDate   *time.Time  `json:"actual_finish_date,omitempty"`
	UserStarted        *uuid.UUID  `json:"user_started,omitempty"`
	UserFinished       *uuid.UUID  `json:"user_finished,omitempty"`
	AssignedTo         []uuid.UUID `json:"assigned_to"`
	RelatedFlows       []uuid.UUID `json:"related_flows,omitempty"`
	IsBackgroundTask   bool        `json:"is_background_task"`
	Modified           bool        `json:"modified"`
	OrganizationID     uuid.UUID   `json:"organization_id"`
	CreatedUser        uuid.UUID   `json:"created_user"`
	ModifiedUser       uuid.UUID   `json:"modified_user"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	return Validate(All(
		Require(t.ID != uuid.Nil, "task ID cannot be empty"),
		Require(t.Title != "", "title is required"),
		Require(IsValidTaskStatus(t.Status), "invalid task status"),
		Require(!t.ExpectedStartDate.IsZero(), "expected start date is required"),
		If(t.ExpectedFinishDate != nil, RequireFunc(func() bool {
			return !t.ExpectedFinishDate.Before(t.ExpectedStartDate)
		}, "expected finish date cannot be before expected start date")),
		Require(t.Duration >= 0, "duration cannot be negative"),
		Require(t.ActualDuration >= 0, "actual duration cannot be negative"),
		Require(len(t.AssignedTo) > 0, "task must be assigned to at least one user"),
		Require(t.OrganizationID != uuid.Nil, "organization is required"),
	))
}

// Date returns the calendar date of the task's expected start.
func (t *Task) Date() time.Time {
	return DateOf(t.ExpectedStartDate)
}

// IsAssigned reports whether userID is in the task's assignee set.
func (t *Task) IsAssigned(userID uuid.UUID) bool {
	return slices.Contains(t.AssignedTo, userID)
}

// IsUnmodified reports whether the task may still be rewritten by changes to
// its rule: it has not been started and has not been edited directly.
func (t *Task) IsUnmodified() bool {
	return t.Status == TaskStatusNew && !t.Modified
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.AssignedTo = slices.Clone(t.AssignedTo)
	c.RelatedFlows = slices.Clone(t.RelatedFlows)
	c.RuleID = cloneID(t.RuleID)
	c.FlowID = cloneID(t.FlowID)
	c.UserStarted = cloneID(t.UserStarted)
	c.UserFinished = cloneID(t.UserFinished)
	c.ExpectedFinishDate = cloneTime(t.ExpectedFinishDate)
	c.ActualStartDate = cloneTime(t.ActualStartDate)
	c.LastStartDate = cloneTime(t.LastStartDate)
	c.ActualFinishDate = cloneTime(t.ActualFinishDate)
	return &c
}

// IsValidTaskStatus checks if the given status is a valid TaskStatus.
func IsValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusPaused,
		TaskStatusFinished, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition may leave status.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusFinished || s == TaskStatusCancelled
}

// CanTransition reports whether the lifecycle allows moving from one status to another.
//
//	New        -> InProgress | Finished | Cancelled
//	InProgress -> Paused | Finished | Cancelled
//	Paused     -> InProgress | Finished | Cancelled
func CanTransition(from, to TaskStatus) bool {
	if from == to || from.IsTerminal() || !IsValidTaskStatus(from) {
		return false
	}
	switch to {
	case TaskStatusInProgress:
		return from == TaskStatusNew || from == TaskStatusPaused
	case TaskStatusPaused:
		return from == TaskStatusInProgress
	case TaskStatusFinished, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// UnionUsers returns base extended with every id of extra not already present,
// preserving order.
func UnionUsers(base []uuid.UUID, extra ...uuid.UUID) []uuid.UUID {
	out := slices.Clone(base)
	for _, id := range extra {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// RemoveUser returns ids without userID.
func RemoveUser(ids []uuid.UUID, userID uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
