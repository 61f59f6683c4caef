package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
)

// PlanningStore defines the interface for task planning persistence.
// Every method joins the transaction carried by ctx when one is active.
type PlanningStore interface {
	// Create saves a new planning.
	// Returns ErrPlanningExists if the user already has a planning on that date.
	Create(ctx context.Context, planning *domain.TaskPlanning) error

	// GetByID retrieves a planning by its unique ID.
	// Returns ErrPlanningNotFound if the planning does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskPlanning, error)

	// Update replaces the flow list and audit fields of a planning.
	Update(ctx context.Context, planning *domain.TaskPlanning) error

	// FindByUserAndDate returns the planning of a user on a calendar day.
	// Returns ErrPlanningNotFound if there is none.
	FindByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.TaskPlanning, error)

	// ListByFlow returns every planning that references flowID.
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskPlanning, error)
}
