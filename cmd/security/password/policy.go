package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Strength rule bounds, counted in runes.
const (
	MinLength = 8
	MaxLength = 128
)

// SpecialChars is the set accepted by the special-character rule.
const SpecialChars = `!@#$%^&*(),.?":{}|<>`

// Violation messages, in rule order. They are shown to end users verbatim.
const (
	MsgTooShort      = "Password must be at least 8 characters long"
	MsgTooLong       = "Password must be less than 128 characters long"
	MsgNoUppercase   = "Password must contain at least one uppercase letter"
	MsgNoLowercase   = "Password must contain at least one lowercase letter"
	MsgNoDigit       = "Password must contain at least one number"
	MsgNoSpecial     = "Password must contain at least one special character"
	MsgCommonPattern = "Password contains common patterns and is not secure"
)

// weakPrefixes are matched case-insensitively against the start of the secret only.
var weakPrefixes = []string{"password", "123456", "qwerty", "admin", "welcome"}

// ValidationResult is the outcome of ValidateStrength.
// Errors keeps rule order; it is never nil.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// ValidateStrength evaluates every rule independently and reports all violations.
// It never returns an error: violations are data for display.
func ValidateStrength(secret string) ValidationResult {
	errs := make([]string, 0, 4)

	n := utf8.RuneCountInString(secret)
	if n < MinLength {
		errs = append(errs, MsgTooShort)
	}
	if n > MaxLength {
		errs = append(errs, MsgTooLong)
	}

	var upper, lower, digit, special bool
	for _, r := range secret {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(SpecialChars, r):
			special = true
		}
	}

	if !upper {
		errs = append(errs, MsgNoUppercase)
	}
	if !lower {
		errs = append(errs, MsgNoLowercase)
	}
	if !digit {
		errs = append(errs, MsgNoDigit)
	}
	if !special {
		errs = append(errs, MsgNoSpecial)
	}

	if hasWeakPrefix(secret) {
		errs = append(errs, MsgCommonPattern)
	}

	return ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}
}

// hasWeakPrefix stops at the first listed prefix that matches.
func hasWeakPrefix(secret string) bool {
	lower := strings.ToLower(secret)
	for _, p := range weakPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
