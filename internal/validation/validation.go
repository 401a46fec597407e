// Package validation provides input validation for registration and account management.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex    = regexp.MustCompile(`^\+994\d{9}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Course bounds for a student's year of study.
const (
	MinCourse = 1
	MaxCourse = 6
)

// ValidatePassword checks length and that the password mixes letters and digits.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if n > 128 {
		return fmt.Errorf("password must not exceed 128 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain at least one letter and one digit")
	}

	return nil
}

// ValidateUsername checks an admin username.
func ValidateUsername(username string) error {
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters long")
	}
	if len(username) > 30 {
		return fmt.Errorf("username must not exceed 30 characters")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username can only contain letters, numbers, underscores, and hyphens")
	}
	if username[0] == '_' || username[0] == '-' || username[len(username)-1] == '_' || username[len(username)-1] == '-' {
		return fmt.Errorf("username cannot start or end with underscore or hyphen")
	}
	return nil
}

// ValidateEmail checks the address format and that it belongs to domain
// (e.g. "@bsu.edu.az"). The domain comparison ignores case.
func ValidateEmail(email, domain string) error {
	if len(email) > 254 {
		return fmt.Errorf("email must not exceed 254 characters")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	if domain != "" && !strings.HasSuffix(strings.ToLower(email), strings.ToLower(domain)) {
		return fmt.Errorf("email must end with %s", domain)
	}
	return nil
}

// ValidatePhone requires the Azerbaijani mobile format +994XXXXXXXXX.
func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("phone must match +994XXXXXXXXX")
	}
	return nil
}

// ValidateCourse requires a year of study between MinCourse and MaxCourse.
func ValidateCourse(course int) error {
	if course < MinCourse || course > MaxCourse {
		return fmt.Errorf("course must be between %d and %d", MinCourse, MaxCourse)
	}
	return nil
}

// ValidateFullName requires a non-blank display name of at most 255 characters.
func ValidateFullName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("full name is required")
	}
	if utf8.RuneCountInString(name) > 255 {
		return fmt.Errorf("full name must not exceed 255 characters")
	}
	return nil
}
