package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskplan-api/internal/domain"
	"github.com/phrazzld/taskplan-api/internal/generation"
	"github.com/phrazzld/taskplan-api/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type horizonFixture struct {
	rules   *mocks.MockRuleStore
	tasks   *mocks.MockTaskStore
	tx      *mocks.MockTransactor
	horizon *generation.Horizon
}

func newHorizonFixture(rules ...*domain.TaskRule) *horizonFixture {
	f := &horizonFixture{
		rules: mocks.NewMockRuleStore(rules...),
		tasks: mocks.NewMockTaskStore(),
	}
	f.tx = mocks.NewMockTransactor(f.rules, f.tasks)
	gen := generation.NewGenerator(f.tasks, nil, generation.WithTimeFunc(fixedNow))
	f.horizon = generation.NewHorizon(f.rules, f.tasks, gen, f.tx, nil, generation.WithTimeFunc(fixedNow))
	return f
}

func TestHorizonLimit(t *testing.T) {
	t.Parallel()

	rule := workdayRule()
	assert.Equal(t, jan1.AddDate(0, 1, 0), generation.HorizonLimit(rule, jan1.Add(13*time.Hour), now))

	assert.Equal(t, jan1.AddDate(1, 0, 0), generation.HorizonLimit(rule, jan1.AddDate(2, 0, 0), now),
		"never more than one year ahead of now")

	validTo := jan1.AddDate(0, 0, 10)
	rule.ValidTo = &validTo
	assert.Equal(t, validTo, generation.HorizonLimit(rule, jan1, now), "never past validTo")
}

func TestHorizonExtend_Scenario(t *testing.T) {
	t.Parallel()

	user := uuid.New()
	rule := workdayRule(user)
	f := newHorizonFixture(rule)

	// Target Jan 8 minus the one month window keeps the scenario to a single week
	target := jan1.AddDate(0, -1, 7)
	require.NoError(t, f.horizon.Extend(context.Background(), []*domain.TaskRule{rule}, target, uuid.New()))

	all := f.tasks.All()
	require.Len(t, all, 5)
	for i, task := range all {
		assert.Equal(t, time.Date(2024, 1, 1+i, 9, 0, 0, 0, time.UTC), task.ExpectedStartDate)
		assert.Equal(t, 30, task.Duration)
	}

	stored := f.rules.Get(rule.ID)
	require.NotNil(t, stored.GeneratedUntil)
	assert.Equal(t, jan1.AddDate(0, 0, 7), *stored.GeneratedUntil)
	assert.Equal(t, *stored.GeneratedUntil, *rule.GeneratedUntil)
	assert.Equal(t, 1, f.tx.Commits)
}

func TestHorizonExtend_NeverMovesBackwards(t *testing.T) {
	t.Parallel()

	rule := workdayRule(uuid.New())
	until := jan1.AddDate(0, 2, 0)
	rule.GeneratedUntil = &until
	f := newHorizonFixture(rule)

	require.NoError(t, f.horizon.Extend(context.Background(), []*domain.TaskRule{rule}, jan1, uuid.New()))

	assert.Empty(t, f.tasks.All())
	assert.Equal(t, until, *f.rules.Get(rule.ID).GeneratedUntil)
	assert.Zero(t, f.tx.Begins)
}

func TestHorizonExtend_ContinuesFromGeneratedUntil(t *testing.T) {
	t.Parallel()

	rule := workdayRule(uuid.New())
	f := newHorizonFixture(rule)
	ctx := context.Background()

	require.NoError(t, f.horizon.Extend(ctx, []*domain.TaskRule{rule}, jan1, uuid.New()))
	first := len(f.tasks.All())

	require.NoError(t, f.horizon.Extend(ctx, []*domain.TaskRule{rule}, jan1.AddDate(0, 0, 14), uuid.New()))
	assert.Greater(t, len(f.tasks.All()), first)
	assert.Equal(t, jan1.AddDate(0, 1, 14), *f.rules.Get(rule.ID).GeneratedUntil)

	seen := map[string]bool{}
	for _, task := range f.tasks.All() {
		key := domain.DayKey(task.ExpectedStartDate)
		assert.False(t, seen[key], "duplicate task on %s", key)
		seen[key] = true
	}
}

func TestHorizonExtend_RuleWithoutUsersStillAdvances(t *testing.T) {
	t.Parallel()

	rule := workdayRule()
	f := newHorizonFixture(rule)

	require.NoError(t, f.horizon.Extend(context.Background(), []*domain.TaskRule{rule}, jan1, uuid.Nil))

	assert.Empty(t, f.tasks.All())
	assert.Equal(t, jan1.AddDate(0, 1, 0), *f.rules.Get(rule.ID).GeneratedUntil)
}

func TestHorizonExtend_BoundedByValidTo(t *testing.T) {
	t.Parallel()

	rule := workdayRule(uuid.New())
	validTo := jan1.AddDate(0, 0, 3)
	rule.ValidTo = &validTo
	f := newHorizonFixture(rule)

	require.NoError(t, f.horizon.Extend(context.Background(), []*domain.TaskRule{rule}, jan1, uuid.New()))

	assert.Len(t, f.tasks.All(), 3)
	stored := f.rules.Get(rule.ID)
	assert.False(t, stored.GeneratedUntil.After(validTo))
}

func TestHorizonExtend_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	rule := workdayRule(uuid.New())
	f := newHorizonFixture(rule)
	storeErr := errors.New("disk full")
	f.rules.FailOn("UpdateGeneratedUntil", storeErr)

	err := f.horizon.Extend(context.Background(), []*domain.TaskRule{rule}, jan1, uuid.New())
	assert.ErrorIs(t, err, generation.ErrHorizonFailed)
	assert.ErrorIs(t, err, storeErr)

	assert.Empty(t, f.tasks.All(), "generated tasks are rolled back with the horizon")
	assert.Nil(t, f.rules.Get(rule.ID).GeneratedUntil)
	assert.Nil(t, rule.GeneratedUntil)
	assert.Equal(t, 1, f.tx.Rollbacks)
}

func TestHorizonExtend_JoinsOuterTransaction(t *testing.T) {
	t.Parallel()

	r1, r2 := workdayRule(uuid.New()), workdayRule(uuid.New())
	f := newHorizonFixture(r1, r2)

	err := f.tx.RunInTransaction(context.Background(), func(ctx context.Context) error {
		return f.horizon.Extend(ctx, []*domain.TaskRule{r1, r2}, jan1, uuid.New())
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.tx.Begins)
	assert.Equal(t, 1, f.tx.Commits)
	assert.NotNil(t, f.rules.Get(r1.ID).GeneratedUntil)
	assert.NotNil(t, f.rules.Get(r2.ID).GeneratedUntil)
}

func TestHorizonRefreshDue(t *testing.T) {
	t.Parallel()

	due := workdayRule(uuid.New())
	dueUntil := jan1.AddDate(0, 0, 3)
	due.GeneratedUntil = &dueUntil

	fresh := workdayRule(uuid.New())
	freshUntil := jan1.AddDate(0, 1, 0)
	fresh.GeneratedUntil = &freshUntil

	expiredTo := jan1.AddDate(0, 0, 2)
	expired := workdayRule(uuid.New())
	expired.ValidTo = &expiredTo
	expired.GeneratedUntil = &expiredTo

	f := newHorizonFixture(due, fresh, expired)

	n, err := f.horizon.RefreshDue(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, jan1.AddDate(0, 1, 0), *f.rules.Get(due.ID).GeneratedUntil)
	assert.Equal(t, freshUntil, *f.rules.Get(fresh.ID).GeneratedUntil)
	assert.Equal(t, expiredTo, *f.rules.Get(expired.ID).GeneratedUntil)

	for _, task := range f.tasks.All() {
		assert.Equal(t, due.CreatedUser, task.CreatedUser, "system refresh records the rule creator")
	}
}

func TestHorizonRefreshDue_ReportsFailures(t *testing.T) {
	t.Parallel()

	f := newHorizonFixture(workdayRule(uuid.New()), workdayRule(uuid.New()))
	f.tasks.FailOn("CreateMultiple", errors.New("boom"))

	n, err := f.horizon.RefreshDue(context.Background(), 24*time.Hour)
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.ErrorIs(t, err, generation.ErrHorizonFailed)
	assert.Equal(t, 2, f.tx.Rollbacks)
}
