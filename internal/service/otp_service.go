package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/chemtrack/chemtrack/internal/delivery"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// IdentityLookup resolves the account that owns a phone number. It returns
// nil, nil when no account exists.
type IdentityLookup interface {
	GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error)
}

// AuditSink records an activity log entry.
type AuditSink interface {
	Record(ctx context.Context, identityID, action, description string) error
}

// Dispatcher delivers a code to a phone.
type Dispatcher interface {
	Send(ctx context.Context, phone, code string) delivery.Result
}

type IssueResult struct {
	Phone     string
	ExpiresAt time.Time
	Provider  string
}

// OTPService issues and verifies phone login codes. It keeps no state of its
// own between calls; every call re-reads the store.
type OTPService struct {
	store      store.TTLStore
	limiter    *RateLimiter
	dispatcher Dispatcher
	users      IdentityLookup
	audit      AuditSink
	generator  CodeGenerator
	clock      clock.Clock
	cfg        *config.OTPConfig
	logger     *logrus.Logger
}

func NewOTPService(
	s store.TTLStore,
	limiter *RateLimiter,
	dispatcher Dispatcher,
	users IdentityLookup,
	audit AuditSink,
	generator CodeGenerator,
	c clock.Clock,
	cfg *config.OTPConfig,
	logger *logrus.Logger,
) *OTPService {
	if c == nil {
		c = clock.New()
	}
	return &OTPService{
		store:      s,
		limiter:    limiter,
		dispatcher: dispatcher,
		users:      users,
		audit:      audit,
		generator:  generator,
		clock:      c,
		cfg:        cfg,
		logger:     logger,
	}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}

func attemptsKey(phone string) string {
	return fmt.Sprintf("otp:attempts:%s", phone)
}

// Issue sends a fresh code to phone, replacing any code issued before.
func (s *OTPService) Issue(ctx context.Context, rawPhone string) (*IssueResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithField("phone", phone)

	if decision := s.limiter.Check(ctx, phone); !decision.Allowed {
		log.WithField("error_kind", "RATE_LIMITED").WithField("scope", decision.Scope).Info("OTP request rate limited")
		return nil, decision.Err()
	}

	user, err := s.resolveIdentity(ctx, phone)
	if err != nil {
		return nil, err
	}

	code, err := s.generator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate OTP: %w", err)
	}

	record, err := s.storeRecord(ctx, phone, user.ID, code)
	if err != nil {
		log.WithError(err).WithField("error_kind", ErrorKind(ErrStorageUnavailable)).Error("Failed to store OTP")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	result := s.dispatcher.Send(ctx, phone, code)
	if !result.Delivered {
		log.WithField("error_kind", ErrorKind(ErrDeliveryFailed)).Error("All SMS providers failed")
		// An undelivered code must not stay redeemable.
		if err := s.clearRecord(ctx, phone); err != nil {
			log.WithError(err).Warn("Failed to clear undelivered OTP")
		}
		return nil, ErrDeliveryFailed
	}

	if err := s.limiter.Record(ctx, phone); err != nil {
		log.WithError(err).WithField("error_kind", ErrorKind(ErrStorageUnavailable)).Error("Failed to update OTP rate limit")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.recordActivity(ctx, user.ID, models.ActionOTPSent, fmt.Sprintf("OTP sent to phone number: %s", phone))

	log.WithField("provider", result.Provider).Info("OTP issued")

	return &IssueResult{
		Phone:     phone,
		ExpiresAt: record.ExpiresAt,
		Provider:  result.Provider,
	}, nil
}

// Verify redeems code for phone. On success the record is gone and the owning
// user is returned.
func (s *OTPService) Verify(ctx context.Context, rawPhone, code string) (*models.User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	log := s.logger.WithField("phone", phone)

	record, err := s.loadRecord(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrExpiredOrNotFound
	}
	if err != nil {
		log.WithError(err).WithField("error_kind", ErrorKind(ErrStorageUnavailable)).Error("Failed to load OTP")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if record.Expired(s.clock.Now()) {
		if err := s.clearRecord(ctx, phone); err != nil {
			log.WithError(err).Warn("Failed to clear expired OTP")
		}
		return nil, ErrExpired
	}

	if record.Attempts >= s.cfg.MaxVerifyAttempts {
		return nil, s.exhausted(ctx, log, phone)
	}

	// Reserve the attempt before comparing so concurrent guesses share one
	// budget. The counter outlives the record slightly so it cannot vanish first.
	ttl := record.ExpiresAt.Sub(s.clock.Now()) + time.Minute
	used, err := s.store.Increment(ctx, attemptsKey(phone), ttl)
	if err != nil {
		log.WithError(err).WithField("error_kind", ErrorKind(ErrStorageUnavailable)).Error("Failed to record OTP attempt")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if used > int64(s.cfg.MaxVerifyAttempts) {
		return nil, s.exhausted(ctx, log, phone)
	}

	if bcrypt.CompareHashAndPassword([]byte(record.CodeHash), []byte(code)) != nil {
		log.WithFields(logrus.Fields{
			"error_kind": ErrorKind(ErrInvalidCode),
			"attempt":    used,
		}).Info("Invalid OTP submitted")
		return nil, ErrInvalidCode
	}

	// Single use: only the caller that removes the record is logged in.
	claimed, err := s.store.Claim(ctx, otpKey(phone))
	if err != nil {
		log.WithError(err).WithField("error_kind", ErrorKind(ErrStorageUnavailable)).Error("Failed to clear verified OTP")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !claimed {
		return nil, ErrExpiredOrNotFound
	}
	if err := s.store.Delete(ctx, attemptsKey(phone)); err != nil {
		log.WithError(err).Warn("Failed to clear OTP attempt counter")
	}

	user, err := s.users.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	s.recordActivity(ctx, user.ID, models.ActionLogin, fmt.Sprintf("User logged in via OTP: %s", phone))
	log.WithField("user_id", user.ID).Info("OTP verified")

	return user, nil
}

func (s *OTPService) resolveIdentity(ctx context.Context, phone string) (*models.User, error) {
	user, err := s.users.GetByPhoneNumber(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return nil, ErrIdentityNotFound
	}
	if !user.Approved {
		return nil, ErrNotApproved
	}
	return user, nil
}

func (s *OTPService) storeRecord(ctx context.Context, phone, userID, code string) (*models.OTPRecord, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash OTP: %w", err)
	}

	now := s.clock.Now()
	record := &models.OTPRecord{
		CodeHash:  string(hash),
		UserID:    userID,
		Phone:     phone,
		Attempts:  0,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.Expiry),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OTP record: %w", err)
	}

	// Failed attempts belong to the record they were made against.
	if err := s.store.Delete(ctx, attemptsKey(phone)); err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, otpKey(phone), data, s.cfg.Expiry); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *OTPService) loadRecord(ctx context.Context, phone string) (*models.OTPRecord, error) {
	data, err := s.store.Get(ctx, otpKey(phone))
	if err != nil {
		return nil, err
	}

	var record models.OTPRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal OTP record: %w", err)
	}

	raw, err := s.store.Get(ctx, attemptsKey(phone))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		attempts, err := strconv.Atoi(string(raw))
		if err != nil {
			return nil, fmt.Errorf("malformed attempt counter: %w", err)
		}
		record.Attempts = attempts
	}

	return &record, nil
}

// exhausted drops the record but keeps the attempt counter, so in-flight
// verifiers that already loaded the record still see the budget as spent.
func (s *OTPService) exhausted(ctx context.Context, log *logrus.Entry, phone string) error {
	if err := s.store.Delete(ctx, otpKey(phone)); err != nil {
		log.WithError(err).Warn("Failed to clear exhausted OTP")
	}
	log.WithField("error_kind", ErrorKind(ErrTooManyAttempts)).Warn("OTP attempt budget exhausted")
	return ErrTooManyAttempts
}

func (s *OTPService) clearRecord(ctx context.Context, phone string) error {
	if err := s.store.Delete(ctx, otpKey(phone)); err != nil {
		return err
	}
	return s.store.Delete(ctx, attemptsKey(phone))
}

func (s *OTPService) recordActivity(ctx context.Context, userID, action, description string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, userID, action, description); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"action":  action,
		}).Warn("Failed to record activity")
	}
}
