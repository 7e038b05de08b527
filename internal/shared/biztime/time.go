// Package biztime centralizes time handling. All storage and transport use
// UTC; daily quota boundaries are computed against UTC midnight.
package biztime

import (
	"time"
)

// NowUTC returns the current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Location returns the timezone used for scheduled jobs. The broker runs
// everything in UTC so quota resets line up with the daily byte counters.
func Location() *time.Location {
	return time.UTC
}

// StartOfDayUTC returns UTC midnight for the given time's day.
func StartOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysAgoUTC returns the UTC instant the given number of days before now.
func DaysAgoUTC(days int) time.Time {
	return NowUTC().AddDate(0, 0, -days)
}
