package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/store"
)

// OccurrenceIndex records, per user, the calendar days on which a rule already
// has a materialized task. Days are stored as domain.DayKey strings.
type OccurrenceIndex map[uuid.UUID]map[string]struct{}

// Has reports whether userID already has a task on date.
func (ix OccurrenceIndex) Has(userID uuid.UUID, date time.Time) bool {
	_, ok := ix[userID][domain.DayKey(date)]
	return ok
}

// Add records a task for userID on date.
func (ix OccurrenceIndex) Add(userID uuid.UUID, date time.Time) {
	days, ok := ix[userID]
	if !ok {
		days = make(map[string]struct{})
		ix[userID] = days
	}
	days[domain.DayKey(date)] = struct{}{}
}

// BuildIndex loads the tasks of ruleID dated in [from, to) and indexes every
// assignee against the task's calendar day.
func BuildIndex(
	ctx context.Context,
	tasks store.TaskStore,
	ruleID uuid.UUID,
	from, to time.Time,
) (OccurrenceIndex, error) {
	existing, err := tasks.ListByRule(ctx, store.TaskFilter{RuleID: ruleID, From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("%w: list tasks for index: %w", ErrGenerationFailed, err)
	}

	ix := make(OccurrenceIndex)
	for _, t := range existing {
		for _, userID := range t.AssignedTo {
			ix.Add(userID, t.ExpectedStartDate)
		}
	}
	return ix, nil
}
