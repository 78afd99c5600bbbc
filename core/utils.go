package core

import "strings"

// CleanString trims surrounding whitespace and optionally lowercases; used on
// every user-supplied identity field (emails, phone numbers, formal IDs)
// before validation and uniqueness checks.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
