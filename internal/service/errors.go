package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	ErrIdentityNotFound   = errors.New("no user found with this phone number")
	ErrNotApproved        = errors.New("account pending approval")
	ErrRateLimited        = errors.New("too many otp requests")
	ErrStorageUnavailable = errors.New("otp storage unavailable")
	ErrDeliveryFailed     = errors.New("otp delivery failed")
	ErrExpiredOrNotFound  = errors.New("otp expired or not found")
	ErrTooManyAttempts    = errors.New("too many failed otp attempts")
	ErrInvalidCode        = errors.New("invalid otp code")
)

// ErrExpired is reported when a record was found but its window had passed.
// Callers that must not distinguish expiry from absence match it with
// errors.Is(err, ErrExpiredOrNotFound).
var ErrExpired = fmt.Errorf("%w: otp has expired", ErrExpiredOrNotFound)

const (
	ScopeHour = "hour"
	ScopeDay  = "day"
)

// RateLimitedError carries which window was exceeded and when to retry.
type RateLimitedError struct {
	Scope      string
	RetryAfter string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: %s limit reached, retry after %s", ErrRateLimited, e.Scope, e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// ErrorKind returns a short stable name for err, used as a log field and as
// the machine-readable code in HTTP responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPhoneFormat):
		return "INVALID_PHONE"
	case errors.Is(err, ErrIdentityNotFound):
		return "IDENTITY_NOT_FOUND"
	case errors.Is(err, ErrNotApproved):
		return "NOT_APPROVED"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	case errors.Is(err, ErrDeliveryFailed):
		return "DELIVERY_FAILED"
	case errors.Is(err, ErrExpired):
		return "OTP_EXPIRED"
	case errors.Is(err, ErrExpiredOrNotFound):
		return "OTP_EXPIRED_OR_NOT_FOUND"
	case errors.Is(err, ErrTooManyAttempts):
		return "TOO_MANY_ATTEMPTS"
	case errors.Is(err, ErrInvalidCode):
		return "INVALID_OTP"
	default:
		return "INTERNAL"
	}
}
