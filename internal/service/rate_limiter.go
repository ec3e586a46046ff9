package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chemtrack/chemtrack/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour

	retryAfterHour = "1 hour"
	retryAfterDay  = "24 hours"
)

// Decision is the outcome of RateLimiter.Check.
type Decision struct {
	Allowed    bool
	Scope      string
	RetryAfter string
	Message    string
}

// Err returns nil when the request is allowed and a *RateLimitedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &RateLimitedError{Scope: d.Scope, RetryAfter: d.RetryAfter}
}

// RateLimiter caps OTP issuance per phone over a rolling hour and a rolling
// day. Windows start at the first request and are never extended.
type RateLimiter struct {
	store      store.TTLStore
	maxPerHour int
	maxPerDay  int
	logger     *logrus.Logger
}

func NewRateLimiter(s store.TTLStore, maxPerHour, maxPerDay int, logger *logrus.Logger) *RateLimiter {
	return &RateLimiter{
		store:      s,
		maxPerHour: maxPerHour,
		maxPerDay:  maxPerDay,
		logger:     logger,
	}
}

func hourlyKey(phone string) string {
	return fmt.Sprintf("otp_rate_hour:%s", phone)
}

func dailyKey(phone string) string {
	return fmt.Sprintf("otp_rate_day:%s", phone)
}

// Check reads both counters. If the store cannot be read the request is
// allowed: a store outage must not lock every user out of login.
func (l *RateLimiter) Check(ctx context.Context, phone string) Decision {
	hourly, err := l.count(ctx, hourlyKey(phone))
	if err != nil {
		l.failOpen(phone, err)
		return Decision{Allowed: true}
	}
	if hourly >= int64(l.maxPerHour) {
		return Decision{
			Scope:      ScopeHour,
			RetryAfter: retryAfterHour,
			Message:    "Too many OTP requests. Please wait before requesting another OTP.",
		}
	}

	daily, err := l.count(ctx, dailyKey(phone))
	if err != nil {
		l.failOpen(phone, err)
		return Decision{Allowed: true}
	}
	if daily >= int64(l.maxPerDay) {
		return Decision{
			Scope:      ScopeDay,
			RetryAfter: retryAfterDay,
			Message:    "Daily OTP limit exceeded. Please try again tomorrow.",
		}
	}

	return Decision{Allowed: true}
}

// Record counts one issuance against both windows.
func (l *RateLimiter) Record(ctx context.Context, phone string) error {
	if _, err := l.store.Increment(ctx, hourlyKey(phone), hourWindow); err != nil {
		return fmt.Errorf("failed to update hourly counter: %w", err)
	}
	if _, err := l.store.Increment(ctx, dailyKey(phone), dayWindow); err != nil {
		return fmt.Errorf("failed to update daily counter: %w", err)
	}
	return nil
}

func (l *RateLimiter) count(ctx context.Context, key string) (int64, error) {
	raw, err := l.store.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed counter at %s: %w", key, err)
	}
	return count, nil
}

func (l *RateLimiter) failOpen(phone string, err error) {
	l.logger.WithError(err).WithFields(logrus.Fields{
		"phone":      phone,
		"error_kind": "RATE_LIMIT_READ_FAILED",
	}).Warn("Rate limit check failed, allowing request")
}
