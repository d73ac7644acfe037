package domain

import (
	"strings"
	"unicode"
)

// IdentityKeyOf derives the per-prospect key from a free-text member name:
// lowercase with every whitespace rune removed.
//
// Two different people with the same normalized name share a key. Every
// join between bookings and runs goes through this function so a stronger
// identity (phone, member id) can replace it in one place.
func IdentityKeyOf(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
