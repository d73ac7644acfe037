package domain

import "strings"

// CorruptedOwnerReason is stamped on bookings whose owner was cleared by the auditor.
const CorruptedOwnerReason = "corrupted value"

// LooksLikeTimestamp reports values that carry both a date separator and a
// time separator, e.g. "2024-01-05T10:00:00" or "1/5/2024 10:00". Staff names
// never do; timestamps pasted into owner fields are a known data-entry bug.
func LooksLikeTimestamp(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}
	hasDateSep := strings.ContainsAny(v, "-/")
	hasTimeSep := strings.Contains(v, ":")
	return hasDateSep && hasTimeSep
}

var placeholderStaffValues = map[string]struct{}{
	"":        {},
	"unknown": {},
	"n/a":     {},
	"na":      {},
	"none":    {},
	"-":       {},
	"tbd":     {},
}

// IsUsableStaffValue reports whether value names a real staff member.
func IsUsableStaffValue(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if _, placeholder := placeholderStaffValues[v]; placeholder {
		return false
	}
	return !LooksLikeTimestamp(v)
}
