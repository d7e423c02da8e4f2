package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field limits.
const (
	MaxEmailLength       = 254
	MinFullNameLength    = 2
	MaxFullNameLength    = 100
	MaxAboutMeLength     = 2000
	MaxShortTextLength   = 100
	MaxLanguages         = 10
	MinHeightCm          = 120
	MaxHeightCm          = 250
	MaxShortlistNote     = 500
	MaxReportDescription = 1000
	MaxBanReasonLength   = 500
)

// e164Pattern matches +<country><number>, 8 to 15 digits.
var e164Pattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks a normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return invalid("email", "is required")
	}
	if len(email) > MaxEmailLength {
		return invalid("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

// ValidatePhone accepts an empty value or an E.164 number.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !e164Pattern.MatchString(phone) {
		return invalid("phoneNumber", "must be in E.164 format")
	}
	return nil
}

// validateLength checks the rune count of s against [minLen, maxLen].
func validateLength(field, s string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(s)
	if n < minLen {
		if minLen == 1 {
			return invalid(field, "is required")
		}
		return invalid(field, fmt.Sprintf("must be at least %d characters", minLen))
	}
	if n > maxLen {
		return invalid(field, fmt.Sprintf("must be at most %d characters", maxLen))
	}
	return nil
}

// validateID rejects empty or oversized identifiers.
func validateID(field, id string) error {
	if id == "" {
		return invalid(field, "is required")
	}
	if len(id) > 64 {
		return invalid(field, "is too long")
	}
	return nil
}

// clampLimit applies the default when limit is unset and caps it at maxLimit.
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
