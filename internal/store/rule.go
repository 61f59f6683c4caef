package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
)

// RuleStore defines the interface for task rule data persistence.
// Every method joins the transaction carried by ctx when one is active.
type RuleStore interface {
	// Create saves a new task rule.
	// Returns validation errors if the rule data is invalid.
	Create(ctx context.Context, rule *domain.TaskRule) error

	// GetByID retrieves a task rule by its unique ID.
	// Returns ErrRuleNotFound if the rule does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TaskRule, error)

	// Update replaces every mutable column of an existing rule, including
	// its generation horizon. Returns ErrRuleNotFound if the rule does not exist.
	Update(ctx context.Context, rule *domain.TaskRule) error

	// UpdateGeneratedUntil moves the generation horizon of a rule without
	// touching its other columns. Returns ErrRuleNotFound if the rule does not exist.
	UpdateGeneratedUntil(ctx context.Context, id uuid.UUID, until time.Time) error

	// ListByFlow returns every rule that references flowID.
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]*domain.TaskRule, error)

	// ListForUsers returns the rules of an organization that target at least
	// one of userIDs and whose validity window overlaps [from, to).
	ListForUsers(
		ctx context.Context,
		organizationID uuid.UUID,
		userIDs []uuid.UUID,
		from, to time.Time,
	) ([]*domain.TaskRule, error)

	// ListHorizonDue returns rules whose generation horizon lies before the given
	// date and that are still valid at their horizon.
	ListHorizonDue(ctx context.Context, before time.Time) ([]*domain.TaskRule, error)
}
