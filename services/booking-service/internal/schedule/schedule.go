package schedule

import "time"

// Bookings are hour granular: a slot is its hour-truncated start time and all
// calendar arithmetic here assumes a single timezone.

const displayLayout = "January 02, 3:04pm"

// StartOfHour truncates t to the top of its hour.
func StartOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// StartOfDay returns midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// FormatDisplay renders a slot for human-facing notices, e.g. "June 01, 10:00am".
func FormatDisplay(t time.Time) string {
	return t.Format(displayLayout)
}
