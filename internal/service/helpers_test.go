package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/chemtrack/chemtrack/internal/delivery"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testOTPConfig() *config.OTPConfig {
	return &config.OTPConfig{
		Length:            6,
		Expiry:            10 * time.Minute,
		MaxVerifyAttempts: 3,
		MaxPerHour:        5,
		MaxPerDay:         20,
		HashCost:          bcrypt.MinCost,
	}
}

type mockUsers struct {
	GetByPhoneNumberFunc func(ctx context.Context, phoneNumber string) (*models.User, error)
}

func (m *mockUsers) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error) {
	if m.GetByPhoneNumberFunc != nil {
		return m.GetByPhoneNumberFunc(ctx, phoneNumber)
	}
	return &models.User{ID: "user-1", PhoneNumber: phoneNumber, Role: models.RoleLabStaff, Approved: true}, nil
}

type auditEntry struct {
	identityID  string
	action      string
	description string
}

type mockAudit struct {
	mu      sync.Mutex
	entries []auditEntry
	err     error
}

func (m *mockAudit) Record(_ context.Context, identityID, action, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{identityID: identityID, action: action, description: description})
	return m.err
}

func (m *mockAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		actions = append(actions, e.action)
	}
	return actions
}

// mockDispatcher remembers the last code it was asked to send.
type mockDispatcher struct {
	mu       sync.Mutex
	SendFunc func(ctx context.Context, phone, code string) delivery.Result
	codes    []string
}

func (m *mockDispatcher) Send(ctx context.Context, phone, code string) delivery.Result {
	m.mu.Lock()
	m.codes = append(m.codes, code)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, phone, code)
	}
	return delivery.Result{Delivered: true, Provider: "test"}
}

func (m *mockDispatcher) lastCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return ""
	}
	return m.codes[len(m.codes)-1]
}

func (m *mockDispatcher) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.codes)
}

// faultyStore wraps a TTLStore and lets a test fail individual operations.
type faultyStore struct {
	store.TTLStore
	SetFunc       func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetFunc       func(ctx context.Context, key string) ([]byte, error)
	DeleteFunc    func(ctx context.Context, key string) error
	ClaimFunc     func(ctx context.Context, key string) (bool, error)
	IncrementFunc func(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

func (f *faultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.SetFunc != nil {
		return f.SetFunc(ctx, key, value, ttl)
	}
	return f.TTLStore.Set(ctx, key, value, ttl)
}

func (f *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.GetFunc != nil {
		return f.GetFunc(ctx, key)
	}
	return f.TTLStore.Get(ctx, key)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	if f.DeleteFunc != nil {
		return f.DeleteFunc(ctx, key)
	}
	return f.TTLStore.Delete(ctx, key)
}

func (f *faultyStore) Claim(ctx context.Context, key string) (bool, error) {
	if f.ClaimFunc != nil {
		return f.ClaimFunc(ctx, key)
	}
	return f.TTLStore.Claim(ctx, key)
}

func (f *faultyStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.IncrementFunc != nil {
		return f.IncrementFunc(ctx, key, ttl)
	}
	return f.TTLStore.Increment(ctx, key, ttl)
}

type otpFixture struct {
	service    *OTPService
	store      store.TTLStore
	memory     *store.MemoryStore
	clock      *clock.Manual
	dispatcher *mockDispatcher
	users      *mockUsers
	audit      *mockAudit
	cfg        *config.OTPConfig
}

// newOTPFixture builds an OTPService on a MemoryStore driven by a manual
// clock. wrap, when non-nil, can decorate the store before it is injected.
func newOTPFixture(t *testing.T, cfg *config.OTPConfig, wrap func(store.TTLStore) store.TTLStore) *otpFixture {
	t.Helper()

	if cfg == nil {
		cfg = testOTPConfig()
	}
	c := clock.NewManual(testStart)
	memory := store.NewMemoryStore(c)

	var s store.TTLStore = memory
	if wrap != nil {
		s = wrap(memory)
	}

	f := &otpFixture{
		store:      s,
		memory:     memory,
		clock:      c,
		dispatcher: &mockDispatcher{},
		users:      &mockUsers{},
		audit:      &mockAudit{},
		cfg:        cfg,
	}
	limiter := NewRateLimiter(s, cfg.MaxPerHour, cfg.MaxPerDay, testLogger())
	f.service = NewOTPService(s, limiter, f.dispatcher, f.users, f.audit,
		NewNumericCodeGenerator(cfg.Length), c, cfg, testLogger())
	return f
}

// wrongCode returns a code of the same length that differs from code.
func wrongCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}
