package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the layout used for calendar dates and occurrence keys.
const DateLayout = "2006-01-02"

// DateOf returns the UTC calendar date of t at midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey renders the calendar date of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, s)
	}
	return t, nil
}

// MinDate returns the earliest of the given times, ignoring nil entries.
// It returns the zero time when every entry is nil.
func MinDate(dates ...*time.Time) time.Time {
	var out time.Time
	for _, d := range dates {
		if d == nil {
			continue
		}
		if out.IsZero() || d.Before(out) {
			out = *d
		}
	}
	return out
}

// TimeOfDay is a wall-clock hour and minute, used as a rule's task start time.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String renders the time of day as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// On returns the given calendar date at this time of day, in UTC.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.UTC().Date()
	return time.Date(y, m, d, t.Hour, t.Minute, 0, 0, time.UTC)
}

// Valid reports whether hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// MarshalJSON encodes the time of day as an "HH:MM" string.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes an "HH:MM" string.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeOfDay, err)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
