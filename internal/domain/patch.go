package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Optional is a patch field that distinguishes three states:
//
//   - absent (Set == false): leave the current value unchanged
//   - present (Set == true, Null == false): replace with Value
//   - present but null (Set == true, Null == true): clear the value
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Cleared returns a present-but-null Optional.
func Cleared[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// Present reports whether the field carries a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// UnmarshalJSON marks the field as set. A JSON null marks it as cleared.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes the value, or null when absent or cleared.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// RulePatch is a partial update of a TaskRule. Clearing is only meaningful for
// ValidTo (open-ended rule); clearing any other field resets it to its zero value.
type RulePatch struct {
	Title            Optional[string]
	Description      Optional[string]
	Remarks          Optional[string]
	Type             Optional[RuleType]
	DailyType        Optional[DailyType]
	WeeklyDays       Optional[[]time.Weekday]
	MonthlyMonths    Optional[[]time.Month]
	MonthlyOn        Optional[int]
	MonthlyOnType    Optional[string]
	IsBackgroundTask Optional[bool]
	IsSharedTask     Optional[bool]
	TaskStartTime    Optional[TimeOfDay]
	ValidFrom        Optional[time.Time]
	ValidTo          Optional[time.Time]
	TaskDuration     Optional[int]
	Priority         Optional[int]
	Zone             Optional[string]
	Users            Optional[[]uuid.UUID]
	Flows            Optional[[]uuid.UUID]
}

// TouchesValidity reports whether the patch changes the validity window.
func (p RulePatch) TouchesValidity() bool {
	return p.ValidFrom.Set || p.ValidTo.Set
}

// TouchesDisplay reports whether the patch changes fields copied onto tasks.
func (p RulePatch) TouchesDisplay() bool {
	return p.Title.Set || p.TaskDuration.Set || p.Description.Set || p.IsBackgroundTask.Set
}

// TouchesPattern reports whether the patch changes which dates or users
// the rule expands to.
func (p RulePatch) TouchesPattern() bool {
	return p.Users.Set || p.Type.Set || p.DailyType.Set || p.WeeklyDays.Set || p.IsSharedTask.Set
}

// Validate checks the patch on its own, before it is applied to a rule.
func (p RulePatch) Validate() error {
	return Validate(All(
		If(p.Title.Set, Require(p.Title.Value != "", "title cannot be empty")),
		If(p.Type.Set, Require(isValidRuleType(p.Type.Value), "type must be daily, weekly or monthly")),
		If(p.ValidFrom.Set, Require(!p.ValidFrom.Null && !p.ValidFrom.Value.IsZero(), "valid from cannot be cleared")),
		If(p.TaskStartTime.Set, Require(!p.TaskStartTime.Null && p.TaskStartTime.Value.Valid(), "task start time is out of range")),
		If(p.TaskDuration.Present(), Require(p.TaskDuration.Value >= 0, "task duration cannot be negative")),
		If(p.Zone.Set, Require(p.Zone.Value != "", "zone cannot be empty")),
	))
}

// Apply writes every set field of the patch onto r.
func (p RulePatch) Apply(r *TaskRule) {
	applyValue(&r.Title, p.Title)
	applyValue(&r.Description, p.Description)
	applyValue(&r.Remarks, p.Remarks)
	applyValue(&r.Type, p.Type)
	applyValue(&r.DailyType, p.DailyType)
	applyValue(&r.WeeklyDays, p.WeeklyDays)
	applyValue(&r.MonthlyMonths, p.MonthlyMonths)
	applyValue(&r.MonthlyOn, p.MonthlyOn)
	applyValue(&r.MonthlyOnType, p.MonthlyOnType)
	applyValue(&r.IsBackgroundTask, p.IsBackgroundTask)
	applyValue(&r.IsSharedTask, p.IsSharedTask)
	applyValue(&r.TaskStartTime, p.TaskStartTime)
	applyValue(&r.TaskDuration, p.TaskDuration)
	applyValue(&r.Priority, p.Priority)
	applyValue(&r.Zone, p.Zone)
	applyValue(&r.Users, p.Users)
	applyValue(&r.Flows, p.Flows)
	if p.ValidFrom.Present() {
		r.ValidFrom = DateOf(p.ValidFrom.Value)
	}
	if p.ValidTo.Set {
		if p.ValidTo.Null {
			r.ValidTo = nil
		} else {
			v := DateOf(p.ValidTo.Value)
			r.ValidTo = &v
		}
	}
}

// TaskPatch is a direct edit of a task. Applying it marks the task as modified,
// which detaches it from later rule-driven rewrites.
type TaskPatch struct {
	Title              Optional[string]
	Description        Optional[string]
	Remarks            Optional[string]
	Priority           Optional[int]
	ExpectedStartDate  Optional[time.Time]
	ExpectedFinishDate Optional[time.Time]
	Duration           Optional[int]
	AssignedTo         Optional[[]uuid.UUID]
}

// Apply writes every set field of the patch onto t and flags it as modified.
func (p TaskPatch) Apply(t *Task) {
	applyValue(&t.Title, p.Title)
	applyValue(&t.Description, p.Description)
	applyValue(&t.Remarks, p.Remarks)
	applyValue(&t.Priority, p.Priority)
	applyValue(&t.Duration, p.Duration)
	applyValue(&t.AssignedTo, p.AssignedTo)
	if p.ExpectedStartDate.Present() {
		t.ExpectedStartDate = p.ExpectedStartDate.Value.UTC()
	}
	if p.ExpectedFinishDate.Set {
		if p.ExpectedFinishDate.Null {
			t.ExpectedFinishDate = nil
		} else {
			v := p.ExpectedFinishDate.Value.UTC()
			t.ExpectedFinishDate = &v
		}
	}
	t.Modified = true
}

func applyValue[T any](dst *T, o Optional[T]) {
	if o.Set {
		*dst = o.Value
	}
}
