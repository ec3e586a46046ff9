package service

import (
	"regexp"
)

var (
	phoneStripPattern = regexp.MustCompile(`[^\d+]`)
	phonePattern      = regexp.MustCompile(`^\+?\d{9,15}$`)
)

// NormalizePhone strips everything but digits and '+' and checks the result
// is an international number: optional leading '+', then 9 to 15 digits.
func NormalizePhone(raw string) (string, error) {
	cleaned := phoneStripPattern.ReplaceAllString(raw, "")
	if !phonePattern.MatchString(cleaned) {
		return "", ErrInvalidPhoneFormat
	}
	return cleaned, nil
}
