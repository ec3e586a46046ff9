package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chemtrack/chemtrack/internal/clock"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	refreshKeyPrefix = "refresh:"
	rotatedKeyPrefix = "refresh:rotated:"
)

var (
	ErrRefreshTokenNotFound  = errors.New("refresh token not found")
	ErrRefreshTokenRevoked   = errors.New("refresh token revoked")
	ErrTokenStoreUnavailable = errors.New("token store unavailable")
)

// RefreshTokenService tracks issued refresh tokens in the TTL store so they
// can be rotated and revoked. Records expire with their token.
type RefreshTokenService struct {
	store  store.TTLStore
	clock  clock.Clock
	logger *logrus.Logger
}

func NewRefreshTokenService(s store.TTLStore, c clock.Clock, logger *logrus.Logger) *RefreshTokenService {
	if c == nil {
		c = clock.New()
	}
	return &RefreshTokenService{store: s, clock: c, logger: logger}
}

// Store records a freshly minted refresh token. Already expired tokens are
// not recorded.
func (s *RefreshTokenService) Store(ctx context.Context, tokenID string, id Identity, familyID string, expiresAt time.Time) error {
	return s.save(ctx, &models.RefreshRecord{
		TokenID:   tokenID,
		UserID:    id.UserID,
		Phone:     id.Phone,
		Role:      id.Role,
		FamilyID:  familyID,
		IssuedAt:  s.clock.Now().UTC(),
		ExpiresAt: expiresAt,
	})
}

func (s *RefreshTokenService) Get(ctx context.Context, tokenID string) (*models.RefreshRecord, error) {
	raw, err := s.store.Get(ctx, refreshKeyPrefix+tokenID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrRefreshTokenNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}

	record := &models.RefreshRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		return nil, fmt.Errorf("decode refresh token: %w", err)
	}
	return record, nil
}

// Consume redeems a refresh token for rotation and revokes it. Of several
// concurrent callers with the same token only one succeeds; the rest get
// ErrRefreshTokenRevoked.
func (s *RefreshTokenService) Consume(ctx context.Context, tokenID string) (*models.RefreshRecord, error) {
	record, err := s.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, ErrRefreshTokenRevoked
	}

	ttl := record.Remaining(s.clock.Now())
	if ttl <= 0 {
		return nil, ErrRefreshTokenNotFound
	}

	// The first increment wins the rotation.
	n, err := s.store.Increment(ctx, rotatedKeyPrefix+tokenID, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}
	if n > 1 {
		return nil, ErrRefreshTokenRevoked
	}

	record.Revoked = true
	if err := s.save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Revoke flags the record; it stays until the token itself would expire.
func (s *RefreshTokenService) Revoke(ctx context.Context, tokenID string) error {
	record, err := s.Get(ctx, tokenID)
	if err != nil {
		return err
	}
	if record.Revoked {
		return nil
	}

	record.Revoked = true
	return s.save(ctx, record)
}

// IsRevoked reports false for unknown tokens; callers that need the record
// follow up with Get.
func (s *RefreshTokenService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	record, err := s.Get(ctx, tokenID)
	if errors.Is(err, ErrRefreshTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Revoked, nil
}

func (s *RefreshTokenService) save(ctx context.Context, record *models.RefreshRecord) error {
	ttl := record.Remaining(s.clock.Now())
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode refresh token: %w", err)
	}

	if err := s.store.Set(ctx, refreshKeyPrefix+record.TokenID, raw, ttl); err != nil {
		s.logger.WithError(err).WithField("family_id", record.FamilyID).Error("Failed to persist refresh token")
		return fmt.Errorf("%w: %v", ErrTokenStoreUnavailable, err)
	}
	return nil
}
