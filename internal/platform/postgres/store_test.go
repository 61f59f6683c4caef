package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/platform/postgres"
	"github.com/phrazzld/taskplan-api/internal/store"
	"github.com/phrazzld/taskplan-api/internal/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stamp  = time.Date(2023, 12, 20, 10, 0, 0, 0, time.UTC)
)

func testRule(org uuid.UUID, users ...uuid.UUID) *domain.TaskRule {
	return &domain.TaskRule{
		ID:             uuid.New(),
		Title:          "Morning check",
		Type:           domain.RuleTypeWeekly,
		WeeklyDays:     []time.Weekday{time.Monday, time.Thursday},
		TaskStartTime:  domain.TimeOfDay{Hour: 9, Minute: 15},
		ValidFrom:      monday,
		TaskDuration:   30,
		Zone:           "north",
		Users:          users,
		Flows:          []uuid.UUID{uuid.New()},
		OrganizationID: org,
		CreatedUser:    users[0],
		ModifiedUser:   users[0],
		CreatedAt:      stamp,
		UpdatedAt:      stamp,
	}
}

func testTask(rule *domain.TaskRule, day time.Time) *domain.Task {
	ruleID := rule.ID
	start := rule.TaskStartTime.On(day)
	finish := start.Add(time.Duration(rule.TaskDuration) * time.Minute)
	return &domain.Task{
		ID:                 uuid.New(),
		RuleID:             &ruleID,
		Status:             domain.TaskStatusNew,
		Title:              rule.Title,
		Zone:               rule.Zone,
		ExpectedStartDate:  start,
		ExpectedFinishDate: &finish,
		Duration:           rule.TaskDuration,
		AssignedTo:         rule.Users,
		OrganizationID:     rule.OrganizationID,
		CreatedUser:        rule.CreatedUser,
		ModifiedUser:       rule.CreatedUser,
		CreatedAt:          stamp,
		UpdatedAt:          stamp,
	}
}

func TestPostgresRuleStore(t *testing.T) {
	db := testdb.Open(t)
	rules := postgres.NewPostgresRuleStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		org, user := uuid.New(), uuid.New()
		rule := testRule(org, user)
		require.NoError(t, rules.Create(ctx, rule))

		got, err := rules.GetByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, rule.Title, got.Title)
		assert.Equal(t, rule.WeeklyDays, got.WeeklyDays)
		assert.Equal(t, rule.TaskStartTime, got.TaskStartTime)
		assert.Equal(t, rule.Users, got.Users)
		assert.Equal(t, rule.Flows, got.Flows)
		assert.True(t, rule.ValidFrom.Equal(got.ValidFrom))
		assert.Nil(t, got.ValidTo)
		assert.Nil(t, got.GeneratedUntil)

		validTo := monday.AddDate(0, 2, 0)
		got.ValidTo = &validTo
		got.Title = "Evening check"
		require.NoError(t, rules.Update(ctx, got))
		require.NoError(t, rules.UpdateGeneratedUntil(ctx, rule.ID, monday.AddDate(0, 1, 0)))

		updated, err := rules.GetByID(ctx, rule.ID)
		require.NoError(t, err)
		assert.Equal(t, "Evening check", updated.Title)
		require.NotNil(t, updated.ValidTo)
		assert.True(t, validTo.Equal(*updated.ValidTo))
		require.NotNil(t, updated.GeneratedUntil)
		assert.True(t, monday.AddDate(0, 1, 0).Equal(*updated.GeneratedUntil))

		byFlow, err := rules.ListByFlow(ctx, rule.Flows[0])
		require.NoError(t, err)
		require.Len(t, byFlow, 1)

		forUsers, err := rules.ListForUsers(ctx, org, []uuid.UUID{user}, monday, monday.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Len(t, forUsers, 1)

		afterValidity, err := rules.ListForUsers(ctx, org, []uuid.UUID{user}, validTo, validTo.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Empty(t, afterValidity)

		due, err := rules.ListHorizonDue(ctx, monday.AddDate(0, 1, 7))
		require.NoError(t, err)
		assert.Contains(t, ruleIDs(due), rule.ID)

		_, err = rules.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrRuleNotFound)
		assert.ErrorIs(t, rules.UpdateGeneratedUntil(ctx, uuid.New(), monday), store.ErrRuleNotFound)
	})
}

func TestPostgresTaskStore(t *testing.T) {
	db := testdb.Open(t)
	rules := postgres.NewPostgresRuleStore(db, nil)
	tasks := postgres.NewPostgresTaskStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		org, user := uuid.New(), uuid.New()
		rule := testRule(org, user)
		require.NoError(t, rules.Create(ctx, rule))

		week := []*domain.Task{
			testTask(rule, monday),
			testTask(rule, monday.AddDate(0, 0, 3)),
			testTask(rule, monday.AddDate(0, 0, 7)),
		}
		require.NoError(t, tasks.CreateMultiple(ctx, week))

		found, err := tasks.FindByRuleAndDate(ctx, rule.ID, monday.AddDate(0, 0, 3))
		require.NoError(t, err)
		assert.Equal(t, week[1].ID, found.ID)
		assert.Equal(t, []uuid.UUID{user}, found.AssignedTo)

		// Edited tasks no longer follow their rule.
		edited := week[2]
		edited.Modified = true
		edited.Title = "Edited"
		require.NoError(t, tasks.Update(ctx, edited))

		title := "Renamed"
		patched, err := tasks.PatchUnmodified(ctx, store.TaskFilter{RuleID: rule.ID}, store.RuleTaskFields{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, int64(2), patched)

		rescheduled, err := tasks.RescheduleUnmodified(ctx, store.TaskFilter{RuleID: rule.ID}, domain.TimeOfDay{Hour: 11})
		require.NoError(t, err)
		assert.Equal(t, int64(2), rescheduled)

		first, err := tasks.GetByID(ctx, week[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", first.Title)
		assert.Equal(t, monday.Add(11*time.Hour), first.ExpectedStartDate)
		assert.Equal(t, monday.Add(11*time.Hour+30*time.Minute), *first.ExpectedFinishDate)

		listed, err := tasks.ListForUsers(ctx, org, []uuid.UUID{user}, monday, monday.AddDate(0, 0, 7))
		require.NoError(t, err)
		assert.Len(t, listed, 2)

		from := monday.AddDate(0, 0, 1)
		deleted, err := tasks.DeleteUnmodified(ctx, store.TaskFilter{RuleID: rule.ID, From: &from})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		remaining, err := tasks.ListByRule(ctx, store.TaskFilter{RuleID: rule.ID})
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{week[0].ID, week[2].ID}, taskIDs(remaining))

		require.NoError(t, tasks.UpdateAssignees(ctx, week[0].ID, []uuid.UUID{user, uuid.New()}, user))
		first, err = tasks.GetByID(ctx, week[0].ID)
		require.NoError(t, err)
		assert.Len(t, first.AssignedTo, 2)
		assert.False(t, first.Modified)

		require.NoError(t, tasks.Delete(ctx, week[0].ID))
		_, err = tasks.GetByID(ctx, week[0].ID)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
		assert.ErrorIs(t, tasks.Delete(ctx, week[0].ID), store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStore_Activity(t *testing.T) {
	db := testdb.Open(t)
	tasks := postgres.NewPostgresTaskStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		org, user, flow := uuid.New(), uuid.New(), uuid.New()
		task := func(status domain.TaskStatus, startedAt time.Time, background bool) *domain.Task {
			started := startedAt
			return &domain.Task{
				ID:                uuid.New(),
				FlowID:            &flow,
				Status:            status,
				Title:             "Inspect line",
				ExpectedStartDate: monday.Add(9 * time.Hour),
				ActualStartDate:   &started,
				UserStarted:       &user,
				AssignedTo:        []uuid.UUID{user},
				IsBackgroundTask:  background,
				OrganizationID:    org,
				CreatedUser:       user,
				ModifiedUser:      user,
				CreatedAt:         stamp,
				UpdatedAt:         stamp,
			}
		}

		active := task(domain.TaskStatusInProgress, monday.Add(9*time.Hour), false)
		older := task(domain.TaskStatusPaused, monday.Add(7*time.Hour), false)
		newer := task(domain.TaskStatusPaused, monday.Add(8*time.Hour), false)
		background := task(domain.TaskStatusPaused, monday.Add(6*time.Hour), true)
		for _, tk := range []*domain.Task{active, older, newer, background} {
			require.NoError(t, tasks.Create(ctx, tk))
		}

		busy, err := tasks.ListBusy(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{active.ID}, taskIDs(busy))

		next, err := tasks.FindOldestPaused(ctx, user, active.ID)
		require.NoError(t, err)
		assert.Equal(t, older.ID, next.ID)

		next, err = tasks.FindOldestPaused(ctx, user, older.ID)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, next.ID)

		_, err = tasks.FindOldestPaused(ctx, uuid.New(), uuid.Nil)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)

		// Only New tasks are returned, so nothing here qualifies.
		onDay, err := tasks.ListNewOnDateForFlow(ctx, monday, flow, nil)
		require.NoError(t, err)
		assert.Empty(t, onDay)
	})
}

func TestPostgresPlanningStore(t *testing.T) {
	db := testdb.Open(t)
	plannings := postgres.NewPostgresPlanningStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		user, flow := uuid.New(), uuid.New()
		planning := &domain.TaskPlanning{
			ID:             uuid.New(),
			Date:           monday,
			UserID:         user,
			Flows:          []uuid.UUID{flow},
			OrganizationID: uuid.New(),
			CreatedUser:    user,
			ModifiedUser:   user,
			CreatedAt:      stamp,
			UpdatedAt:      stamp,
		}
		require.NoError(t, plannings.Create(ctx, planning))

		duplicate := *planning
		duplicate.ID = uuid.New()
		assert.ErrorIs(t, plannings.Create(ctx, &duplicate), store.ErrPlanningExists)
	})

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		user, flow := uuid.New(), uuid.New()
		planning := &domain.TaskPlanning{
			ID:             uuid.New(),
			Date:           monday,
			UserID:         user,
			Flows:          []uuid.UUID{flow},
			OrganizationID: uuid.New(),
			CreatedUser:    user,
			ModifiedUser:   user,
			CreatedAt:      stamp,
			UpdatedAt:      stamp,
		}
		require.NoError(t, plannings.Create(ctx, planning))

		found, err := plannings.FindByUserAndDate(ctx, user, monday.Add(15*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, planning.ID, found.ID)
		assert.True(t, monday.Equal(found.Date))

		found.Flows = nil
		require.NoError(t, plannings.Update(ctx, found))

		byFlow, err := plannings.ListByFlow(ctx, flow)
		require.NoError(t, err)
		assert.Empty(t, byFlow)

		_, err = plannings.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrPlanningNotFound)
	})
}

func TestPostgresAccessStore(t *testing.T) {
	db := testdb.Open(t)
	access := postgres.NewPostgresAccessStore(db, nil)

	testdb.WithTx(t, db, func(t *testing.T, ctx context.Context) {
		org, user := uuid.New(), uuid.New()
		conn := store.Conn(ctx, db)
		_, err := conn.ExecContext(ctx, `INSERT INTO users (id, organization_id) VALUES ($1, $2)`, user, org)
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx,
			`INSERT INTO user_grants (user_id, resource, grant_name) VALUES ($1, 'task', 'update')`, user)
		require.NoError(t, err)

		got, err := access.OrganizationOf(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, org, got)

		_, err = access.OrganizationOf(ctx, uuid.New())
		assert.ErrorIs(t, err, store.ErrUserNotFound)

		ok, err := access.HasGrant(ctx, user, "task", "update")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = access.HasGrant(ctx, user, "task_rule", "update")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func ruleIDs(rules []*domain.TaskRule) []uuid.UUID {
	out := make([]uuid.UUID, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func taskIDs(tasks []*domain.Task) []uuid.UUID {
	out := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}
