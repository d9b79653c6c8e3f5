package util

import (
	"fmt"
	"time"
	// Embed timezone database for containers without tzdata
	_ "time/tzdata"
)

// DayKeyLayout is the calendar-date form used to partition per-day derived data.
const DayKeyLayout = "2006-01-02"

// ResolveLocation loads a timezone, falling back to UTC for an empty name.
func ResolveLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// DayKey returns the calendar date of t in the given location.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayKeyLayout)
}

// DayKeysInRange returns every day key the [start, end] interval touches in
// the given location. Both endpoints' days are always included, so a range
// that starts and ends on the same day yields exactly one key.
func DayKeysInRange(start, end time.Time, loc *time.Location) []string {
	if end.Before(start) {
		start, end = end, start
	}

	keys := []string{DayKey(start, loc)}
	lastKey := DayKey(end, loc)
	if keys[0] == lastKey {
		return keys
	}

	// Walk forward a day at a time from local midnight until we reach the
	// end day. DST shifts are absorbed by re-deriving midnight each step.
	local := start.In(loc)
	cursor := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	for {
		cursor = cursor.AddDate(0, 0, 1)
		key := DayKey(cursor, loc)
		keys = append(keys, key)
		if key == lastKey {
			return keys
		}
	}
}

// ParseRFC3339 parses an RFC3339 timestamp.
func ParseRFC3339(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// FormatRFC3339 formats a time as RFC3339 in UTC.
func FormatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// SQLiteTimestamp formats a time for SQLite (ISO8601).
func SQLiteTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// ParseSQLiteTimestamp parses a SQLite timestamp.
func ParseSQLiteTimestamp(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s)
}
