package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	tokenIssuer     = "chemtrack"
	minSecretLength = 32
)

var (
	ErrWeakSecret   = fmt.Errorf("JWT secret must be at least %d bytes", minSecretLength)
	ErrInvalidToken = errors.New("invalid token")
)

// Claims identify the user a token was minted for. The token ID lives in the
// registered "jti" claim.
type Claims struct {
	Phone string      `json:"phone"`
	Role  models.Role `json:"role"`
	Type  string      `json:"type"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.Subject, Phone: c.Phone, Role: c.Role}
}

// Identity is what a token pair is minted for.
type Identity struct {
	UserID string
	Phone  string
	Role   models.Role
}

func IdentityOf(user *models.User) Identity {
	return Identity{UserID: user.ID, Phone: user.PhoneNumber, Role: user.Role}
}

type JWTService struct {
	key    []byte
	ttl    map[string]time.Duration
	parser *jwt.Parser
	logger *logrus.Logger
}

func NewJWTService(cfg *config.JWTConfig, logger *logrus.Logger) (*JWTService, error) {
	if len(cfg.SecretKey) < minSecretLength {
		return nil, ErrWeakSecret
	}

	return &JWTService{
		key: []byte(cfg.SecretKey),
		ttl: map[string]time.Duration{
			TokenTypeAccess:  cfg.AccessExpiry,
			TokenTypeRefresh: cfg.RefreshExpiry,
		},
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}, nil
}

// GenerateTokenPair signs an access and a refresh token for id. An empty
// familyID starts a new refresh family; the family in use is returned.
func (s *JWTService) GenerateTokenPair(id Identity, familyID string) (*models.TokenPair, string, error) {
	if familyID == "" {
		familyID = uuid.NewString()
	}

	issuedAt := time.Now()
	pair := &models.TokenPair{
		TokenType: "Bearer",
		ExpiresIn: int64(s.ttl[TokenTypeAccess] / time.Second),
	}

	var err error
	if pair.AccessToken, err = s.sign(id, TokenTypeAccess, issuedAt); err != nil {
		return nil, "", err
	}
	if pair.RefreshToken, err = s.sign(id, TokenTypeRefresh, issuedAt); err != nil {
		return nil, "", err
	}

	return pair, familyID, nil
}

func (s *JWTService) sign(id Identity, tokenType string, issuedAt time.Time) (string, error) {
	claims := Claims{
		Phone: id.Phone,
		Role:  id.Role,
		Type:  tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl[tokenType])),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		s.logger.WithError(err).WithField("token_type", tokenType).Error("Token signing failed")
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// VerifyToken checks signature, issuer and expiry. The token type is left to
// the caller.
func (s *JWTService) VerifyToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := s.parser.ParseWithClaims(raw, claims, s.keyFunc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func (s *JWTService) keyFunc(*jwt.Token) (interface{}, error) {
	return s.key, nil
}
