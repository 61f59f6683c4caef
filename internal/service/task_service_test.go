package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/service"
	"github.com/phrazzld/taskplan-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTask(t *testing.T) {
	ctx := context.Background()

	t.Run("fills defaults", func(t *testing.T) {
		f := newFixture(t)
		task, err := f.task.CreateTask(ctx, u2, &domain.Task{
			Title:             "Call supplier",
			ExpectedStartDate: day(2).Add(14 * time.Hour),
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID)
		assert.Equal(t, domain.TaskStatusNew, task.Status)
		assert.Equal(t, []uuid.UUID{u2}, task.AssignedTo)
		assert.Equal(t, org, task.OrganizationID)
		assert.Equal(t, u2, task.CreatedUser)
		assert.Equal(t, now, task.CreatedAt)
		assert.NotNil(t, f.tasks.Get(task.ID))
	})

	t.Run("invalid task", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.task.CreateTask(ctx, u2, &domain.Task{ExpectedStartDate: day(2)})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, f.tasks.All())
	})

	t.Run("rule of another organization", func(t *testing.T) {
		f := newFixture(t)
		rule := f.storedRule(workdayRule(u1))
		f.rules.Rules[rule.ID].OrganizationID = otherOrg

		_, err := f.task.CreateTask(ctx, u2, &domain.Task{
			Title:             "Extra check",
			RuleID:            &rule.ID,
			ExpectedStartDate: day(2),
		})
		assert.ErrorIs(t, err, service.ErrNotOwned)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.tasks.FailOn("Create", errors.New("disk full"))
		_, err := f.task.CreateTask(ctx, u2, &domain.Task{Title: "x", ExpectedStartDate: day(2)})

		var serviceErr *service.ServiceError
		require.ErrorAs(t, err, &serviceErr)
		assert.Equal(t, "create", serviceErr.Op)
	})
}

func TestUpdateTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.storedTask(&domain.Task{ExpectedStartDate: day(2), AssignedTo: []uuid.UUID{u1}})

	updated, err := f.task.UpdateTask(ctx, u1, task.ID, domain.TaskPatch{
		Title:    domain.Some("Renamed"),
		Priority: domain.Some(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.True(t, updated.Modified)

	stored := f.tasks.Get(task.ID)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, 3, stored.Priority)
	assert.True(t, stored.Modified)
	assert.False(t, stored.IsUnmodified())

	t.Run("rejects invalid result", func(t *testing.T) {
		_, err := f.task.UpdateTask(ctx, u1, task.ID, domain.TaskPatch{AssignedTo: domain.Some([]uuid.UUID{})})
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, []uuid.UUID{u1}, f.tasks.Get(task.ID).AssignedTo)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.task.UpdateTask(ctx, u1, uuid.New(), domain.TaskPatch{Title: domain.Some("x")})
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})

	t.Run("other organization", func(t *testing.T) {
		_, err := f.task.UpdateTask(ctx, outsider, task.ID, domain.TaskPatch{Title: domain.Some("x")})
		assert.ErrorIs(t, err, service.ErrNotOwned)
		assert.Equal(t, "Renamed", f.tasks.Get(task.ID).Title)
	})
}

func TestGetDailyTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("extends stale horizons before listing", func(t *testing.T) {
		f := newFixture(t)
		rule := f.storedRule(workdayRule(u2))

		tasks, err := f.task.GetDailyTasks(ctx, u1, service.DailyQuery{
			From:  day(1),
			To:    day(5),
			Users: []uuid.UUID{u2},
		})
		require.NoError(t, err)
		assert.Len(t, tasks, 5)

		stored := f.rules.Get(rule.ID)
		require.NotNil(t, stored.GeneratedUntil)
		assert.Equal(t, time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC), *stored.GeneratedUntil)
		generated := len(f.tasks.All())

		again, err := f.task.GetDailyTasks(ctx, u1, service.DailyQuery{
			From:  day(1),
			To:    day(5),
			Users: []uuid.UUID{u2},
		})
		require.NoError(t, err)
		assert.Len(t, again, 5)
		assert.Len(t, f.tasks.All(), generated)
	})

	t.Run("only tasks of the queried users", func(t *testing.T) {
		f := newFixture(t)
		f.storedTask(&domain.Task{ExpectedStartDate: day(2), AssignedTo: []uuid.UUID{u2}})
		f.storedTask(&domain.Task{ExpectedStartDate: day(2), AssignedTo: []uuid.UUID{u3}})
		f.storedTask(&domain.Task{ExpectedStartDate: day(9), AssignedTo: []uuid.UUID{u2}})

		tasks, err := f.task.GetDailyTasks(ctx, u1, service.DailyQuery{
			From:  day(2),
			To:    day(2),
			Users: []uuid.UUID{u2},
		})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, []uuid.UUID{u2}, tasks[0].AssignedTo)
	})

	t.Run("query validation", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name  string
			query service.DailyQuery
		}{
			{"missing from", service.DailyQuery{To: day(2), Users: []uuid.UUID{u2}}},
			{"to before from", service.DailyQuery{From: day(3), To: day(2), Users: []uuid.UUID{u2}}},
			{"no users", service.DailyQuery{From: day(2), To: day(2)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.task.GetDailyTasks(ctx, u1, tt.query)
				assert.ErrorIs(t, err, domain.ErrValidation)
			})
		}
	})
}

func TestGetBusyTasks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	started := now
	busy := f.storedTask(&domain.Task{
		ExpectedStartDate: day(1),
		AssignedTo:        []uuid.UUID{u2},
		Status:            domain.TaskStatusInProgress,
		UserStarted:       &u2,
		ActualStartDate:   &started,
	})
	f.storedTask(&domain.Task{
		ExpectedStartDate: day(1),
		AssignedTo:        []uuid.UUID{u2},
		Status:            domain.TaskStatusInProgress,
		UserStarted:       &u2,
		IsBackgroundTask:  true,
	})
	f.storedTask(&domain.Task{
		ExpectedStartDate: day(1),
		AssignedTo:        []uuid.UUID{u2},
		Status:            domain.TaskStatusPaused,
		UserStarted:       &u2,
	})

	tasks, err := f.task.GetBusyTasks(ctx, u1, u2)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, busy.ID, tasks[0].ID)

	_, err = f.task.GetBusyTasks(ctx, u1, outsider)
	assert.ErrorIs(t, err, service.ErrNotOwned)

	_, err = f.task.GetBusyTasks(ctx, u1, uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
