package backend

import (
	"fmt"
	"time"
)

const (
	DayLayout   = "2006-01-02"
	ClockLayout = "15:04"
	// LocalDateTimeLayout is what the backend accepts for slot and
	// appointment timestamps (no offset, clinic wall clock).
	LocalDateTimeLayout = "2006-01-02T15:04:05"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	LocalDateTimeLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp accepts ISO 8601 timestamps with or without an offset.
// Offset-less values are parsed as wall clock in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported layout", raw)
}

// ClockTime reduces an ISO timestamp to "HH:mm" (24h, zero padded) using
// the wall clock written in the timestamp itself. No conversion to the
// viewer's zone is performed.
func ClockTime(raw string) (string, error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", err
	}
	return t.Format(ClockLayout), nil
}

// SplitDateTime returns the day and "HH:mm" parts of an ISO timestamp.
func SplitDateTime(raw string) (day, clock string, err error) {
	t, err := ParseTimestamp(raw)
	if err != nil {
		return "", "", err
	}
	return t.Format(DayLayout), t.Format(ClockLayout), nil
}

// JoinDateTime builds the backend's local timestamp from a day and "HH:mm".
func JoinDateTime(day, clock string) (string, error) {
	t, err := time.Parse(DayLayout+"T"+ClockLayout, day+"T"+clock)
	if err != nil {
		return "", fmt.Errorf("join %q %q: %w", day, clock, err)
	}
	return t.Format(LocalDateTimeLayout), nil
}

func ValidDay(s string) bool {
	if len(s) != len(DayLayout) {
		return false
	}
	_, err := time.Parse(DayLayout, s)
	return err == nil
}

func ValidClock(s string) bool {
	if len(s) != len(ClockLayout) {
		return false
	}
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}
