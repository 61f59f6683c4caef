package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// TaskPlanning records which flows are assigned to one user on one day.
// There is at most one planning per (Date, UserID). Flows may become empty
// after removals; creation requires at least one.
type TaskPlanning struct {
	ID             uuid.UUID   `json:"id"`
	Date           time.Time   `json:"date"`
	UserID         uuid.UUID   `json:"user"`
	Flows          []uuid.UUID `json:"flows"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	CreatedUser    uuid.UUID   `json:"created_user"`
	ModifiedUser   uuid.UUID   `json:"modified_user"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Validate checks if the TaskPlanning has valid data.
func (p *TaskPlanning) Validate() error {
	return Validate(All(
		Require(p.ID != uuid.Nil, "planning ID cannot be empty"),
		Require(!p.Date.IsZero(), "date is required"),
		Require(p.UserID != uuid.Nil, "user is required"),
		Require(p.OrganizationID != uuid.Nil, "organization is required"),
	))
}

// HasFlow reports whether flowID is planned.
func (p *TaskPlanning) HasFlow(flowID uuid.UUID) bool {
	return slices.Contains(p.Flows, flowID)
}
