package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateOf(t *testing.T) {
	t.Parallel()

	in := time.Date(2024, 3, 4, 23, 30, 0, 0, time.FixedZone("UTC+2", 2*3600))
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := DateOf(in); !got.Equal(want) {
		t.Errorf("DateOf() = %v, want %v", got, want)
	}
	if key := DayKey(want); key != "2024-03-04" {
		t.Errorf("DayKey() = %q", key)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate("2024-03-04")
	if err != nil || !d.Equal(monday) {
		t.Errorf("ParseDate() = %v, %v", d, err)
	}

	if _, err := ParseDate("04/03/2024"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("Expected ErrInvalidFormat, got %v", err)
	}
}

func TestMinDate(t *testing.T) {
	t.Parallel()

	a := monday
	b := monday.AddDate(0, 0, -1)
	if got := MinDate(&a, nil, &b); !got.Equal(b) {
		t.Errorf("MinDate() = %v, want %v", got, b)
	}
	if got := MinDate(nil, nil); !got.IsZero() {
		t.Errorf("Expected zero time, got %v", got)
	}
}

func TestTimeOfDay(t *testing.T) {
	t.Parallel()

	tod, err := ParseTimeOfDay("07:05")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if tod.String() != "07:05" {
		t.Errorf("String() = %q", tod.String())
	}
	if on := tod.On(monday.Add(20 * time.Hour)); !on.Equal(monday.Add(7*time.Hour + 5*time.Minute)) {
		t.Errorf("On() = %v", on)
	}

	if _, err := ParseTimeOfDay("7pm"); !errors.Is(err, ErrInvalidTimeOfDay) {
		t.Errorf("Expected ErrInvalidTimeOfDay, got %v", err)
	}

	data, err := json.Marshal(tod)
	if err != nil || string(data) != `"07:05"` {
		t.Errorf("Marshal() = %s, %v", data, err)
	}
	var decoded TimeOfDay
	if err := json.Unmarshal([]byte(`"18:45"`), &decoded); err != nil || decoded != (TimeOfDay{Hour: 18, Minute: 45}) {
		t.Errorf("Unmarshal() = %v, %v", decoded, err)
	}
}
