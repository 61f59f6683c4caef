package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// RuleType selects the recurrence pattern of a TaskRule.
type RuleType string

// Possible rule types
const (
	RuleTypeDaily   RuleType = "daily"
	RuleTypeWeekly  RuleType = "weekly"
	RuleTypeMonthly RuleType = "monthly"
)

// DailyType refines a daily rule.
type DailyType string

// Possible daily types
const (
	DailyTypeWorkday  DailyType = "workday"
	DailyTypeCalendar DailyType = "calendar"
)

// OccurrenceLimit returns the last calendar date, relative to now, that can
// still be an occurrence of any rule.
func OccurrenceLimit(now time.Time) time.Time {
	return DateOf(now).AddDate(1, 0, 0)
}

// TaskRule is a recurrence definition that expands into concrete Task occurrences.
// ValidFrom, ValidTo and GeneratedUntil are calendar dates (UTC midnight);
// ValidTo and GeneratedUntil are exclusive bounds.
type TaskRule struct {
	ID               uuid.UUID      `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Remarks          string         `json:"remarks,omitempty"`
	Type             RuleType       `json:"type"`
	DailyType        DailyType      `json:"daily_type,omitempty"`
	WeeklyDays       []time.Weekday `json:"weekly_days,omitempty"`
	MonthlyMonths    []time.Month   `json:"monthly_months,omitempty"`
	MonthlyOn        int            `json:"monthly_on,omitempty"`
	MonthlyOnType    string         `json:"monthly_on_type,omitempty"`
	IsBackgroundTask bool           `json:"is_background_task"`
	IsSharedTask     bool           `json:"is_shared_task"`
	TaskStartTime    TimeOfDay      `json:"task_start_time"`
	ValidFrom        time.Time      `json:"valid_from"`
	ValidTo          *time.Time     `json:"valid_to,omitempty"`
	GeneratedUntil   *time.Time     `json:"generated_until,omitempty"`
	TaskDuration     int            `json:"task_duration"`
	Priority         int            `json:"priority,omitempty"`
	Zone             string         `json:"zone"`
	Users            []uuid.UUID    `json:"users"`
	Flows            []uuid.UUID    `json:"flows"`
	OrganizationID   uuid.UUID      `json:"organization_id"`
	CreatedUser      uuid.UUID      `json:"created_user"`
	ModifiedUser     uuid.UUID      `json:"modified_user"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Validate checks if the TaskRule has valid data.
// Returns a *ValidationError describing the first failing check.
func (r *TaskRule) Validate() error {
	return Validate(All(
		Require(r.ID != uuid.Nil, "rule ID cannot be empty"),
		Require(r.Title != "", "title is required"),
		Require(isValidRuleType(r.Type), "type must be daily, weekly or monthly"),
		If(r.Type == RuleTypeDaily, Require(
			r.DailyType == DailyTypeWorkday || r.DailyType == DailyTypeCalendar,
			"daily rules require daily type workday or calendar",
		)),
		If(r.Type == RuleTypeWeekly, Require(len(r.WeeklyDays) > 0, "weekly rules require at least one weekday")),
		Require(r.TaskStartTime.Valid(), "task start time is out of range"),
		Require(!r.ValidFrom.IsZero(), "valid from is required"),
		If(r.ValidTo != nil, RequireFunc(func() bool {
			return r.ValidTo.After(r.ValidFrom)
		}, "valid to must be after valid from")),
		Require(r.TaskDuration >= 0, "task duration cannot be negative"),
		Require(r.Zone != "", "zone is required"),
		Require(r.OrganizationID != uuid.Nil, "organization is required"),
	))
}

// IsOccurrence reports whether date is an occurrence of the rule. Zero dates
// and dates further than one year ahead of now are never occurrences.
// Monthly rules never produce occurrences.
func (r *TaskRule) IsOccurrence(date, now time.Time) bool {
	if date.IsZero() {
		return false
	}
	if DateOf(date).After(OccurrenceLimit(now)) {
		return false
	}

	weekday := date.UTC().Weekday()
	switch r.Type {
	case RuleTypeDaily:
		switch r.DailyType {
		case DailyTypeCalendar:
			return true
		case DailyTypeWorkday:
			return weekday != time.Saturday && weekday != time.Sunday
		}
		return false
	case RuleTypeWeekly:
		return slices.Contains(r.WeeklyDays, weekday)
	default:
		return false
	}
}

// ValidOn reports whether date lies inside the rule's validity window.
func (r *TaskRule) ValidOn(date time.Time) bool {
	d := DateOf(date)
	if d.Before(DateOf(r.ValidFrom)) {
		return false
	}
	return r.ValidTo == nil || d.Before(DateOf(*r.ValidTo))
}

// HasUser reports whether userID is one of the rule's own users.
func (r *TaskRule) HasUser(userID uuid.UUID) bool {
	return slices.Contains(r.Users, userID)
}

// HorizonStart is where the next expansion of the rule begins.
func (r *TaskRule) HorizonStart() time.Time {
	if r.GeneratedUntil != nil {
		return DateOf(*r.GeneratedUntil)
	}
	return DateOf(r.ValidFrom)
}

// Clone returns a deep copy of the rule.
func (r *TaskRule) Clone() *TaskRule {
	c := *r
	c.WeeklyDays = slices.Clone(r.WeeklyDays)
	c.MonthlyMonths = slices.Clone(r.MonthlyMonths)
	c.Users = slices.Clone(r.Users)
	c.Flows = slices.Clone(r.Flows)
	if r.ValidTo != nil {
		v := *r.ValidTo
		c.ValidTo = &v
	}
	if r.GeneratedUntil != nil {
		g := *r.GeneratedUntil
		c.GeneratedUntil = &g
	}
	return &c
}

// isValidRuleType checks if the given type is a valid RuleType.
func isValidRuleType(t RuleType) bool {
	switch t {
	case RuleTypeDaily, RuleTypeWeekly, RuleTypeMonthly:
		return true
	default:
		return false
	}
}
