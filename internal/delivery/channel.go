// Package delivery sends OTP messages through an ordered list of SMS
// channels, falling through to the next channel whenever one fails.
package delivery

import (
	"context"
	"fmt"
	"time"
)

// Channel is one way of getting a message to a phone.
type Channel interface {
	Name() string
	Send(ctx context.Context, phone, message string) error
}

// FormatMessage renders the SMS body for code.
func FormatMessage(code string, validFor time.Duration) string {
	return fmt.Sprintf("Your Chemical Inventory OTP is: %s. Valid for %d minutes.", code, int(validFor.Minutes()))
}
