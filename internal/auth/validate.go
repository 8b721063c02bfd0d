package auth

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRE = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRE = regexp.MustCompile(`^(\+55|55)?\s*\(?[1-9]{2}\)?\s*9?\d{4}[-\s]?\d{4}$`)
)

const (
	minPasswordLen   = 8
	// bcrypt rejects longer inputs.
	maxPasswordBytes = 72
	minNameRunes     = 3
	maxNameRunes     = 255
)

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks the normalized address shape.
func ValidateEmail(email string) error {
	if !emailRE.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the password policy: at least 8 characters and
// at most 72 bytes, including an upper-case letter, a lower-case letter and
// a digit.
func ValidatePassword(pw string) error {
	if utf8.RuneCountInString(pw) < minPasswordLen || len(pw) > maxPasswordBytes {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

// ValidatePhone accepts Brazilian numbers with optional +55, area code in
// parentheses, and an optional ninth digit. Empty means "not provided".
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil
	}
	if !phoneRE.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

// ValidateFullName requires at least 3 runes once sanitized. Empty means
// "not provided" and is accepted; callers that require a name, such as
// SignUp, reject it before calling.
func ValidateFullName(name string) error {
	if name == "" {
		return nil
	}
	if utf8.RuneCountInString(name) < minNameRunes {
		return ErrInvalidName
	}
	return nil
}

// SanitizeName trims, strips angle brackets and collapses inner whitespace.
func SanitizeName(name string) string {
	name = strings.NewReplacer("<", "", ">", "").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	if utf8.RuneCountInString(name) > maxNameRunes {
		name = string([]rune(name)[:maxNameRunes])
	}
	return name
}
