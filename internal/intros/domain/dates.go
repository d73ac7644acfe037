package domain

import "time"

// DateLayout is the wire and storage layout for calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date in loc, returned as UTC midnight
// so it compares directly with DATE columns.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a calendar date by n days.
func AddDays(date time.Time, n int) time.Time {
	return date.AddDate(0, 0, n)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, raw, time.UTC)
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(date time.Time) string {
	return date.UTC().Format(DateLayout)
}
