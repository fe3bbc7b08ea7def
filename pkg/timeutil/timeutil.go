package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format appointments are stored with
const DateLayout = "2006-01-02"

// ClockLayout24 is the canonical time-of-day format for newly computed slots
const ClockLayout24 = "15:04"

// QueueDateSkewToleranceDays is how many days of skew between a client-entered
// appointment date and the server clock the queue auto-join still accepts.
const QueueDateSkewToleranceDays = 1

var clockLayouts12 = []string{"3:04 PM", "03:04 PM", "3:04PM", "03:04PM"}

// ParseDate parses a YYYY-MM-DD calendar day in the given location
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseClock parses a human time-of-day string in either 24-hour ("14:30")
// or 12-hour ("2:30 PM", "2:30pm") form and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	normalized := strings.ToUpper(strings.TrimSpace(s))

	if strings.Contains(normalized, "AM") || strings.Contains(normalized, "PM") {
		for _, layout := range clockLayouts12 {
			if t, err := time.Parse(layout, normalized); err == nil {
				return t.Hour()*60 + t.Minute(), nil
			}
		}
		return 0, fmt.Errorf("invalid time %q: expected h:mm AM/PM", s)
	}

	t, err := time.Parse(ClockLayout24, normalized)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: expected HH:mm", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as 24-hour HH:mm
func FormatClock(minutes int) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CombineDateTime resolves a stored date and time-of-day string pair into a
// concrete instant in the given location.
func CombineDateTime(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	minutes, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minutes) * time.Minute), nil
}

// CeilToStep rounds t up to the next multiple of step (no-op if aligned)
func CeilToStep(t time.Time, step time.Duration) time.Time {
	truncated := t.Truncate(step)
	if truncated.Before(t) {
		return truncated.Add(step)
	}
	return truncated
}

// SameDay reports whether two instants fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
