package credential

import (
	"strings"
	"unicode"
)

// MaxSubjectLength bounds a normalized subject in runes.
const MaxSubjectLength = 256

// NormalizeSubject performs case-insensitive canonicalization (trim + lower-case).
func NormalizeSubject(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidSubject reports whether a normalized subject may be stored.
// Control characters are refused so subjects stay safe to log.
func ValidSubject(s string) bool {
	if s == "" {
		return false
	}
	n := 0
	for _, r := range s {
		n++
		if n > MaxSubjectLength || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
