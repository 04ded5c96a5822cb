package entity

import "regexp"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail is a syntax check only; deliverability is not verified.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
