// utils/validator.go - Input validation
package utils

import (
	"strings"
)

// ValidateEmail checks the registry's email shape: exactly one "@" and a
// dot somewhere in the domain part.
func ValidateEmail(email string) bool {
	if strings.Count(email, "@") != 1 {
		return false
	}
	domain := email[strings.Index(email, "@")+1:]
	return strings.Contains(domain, ".")
}

// NormalizeEmail lowercases and trims an email to its canonical stored form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword checks password strength
func ValidatePassword(password string) (bool, string) {
	if len(password) < 6 {
		return false, "Password must be at least 6 characters"
	}

	return true, ""
}

// SanitizeInput removes potentially harmful characters
func SanitizeInput(input string) string {
	// Remove leading/trailing spaces
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	return input
}
