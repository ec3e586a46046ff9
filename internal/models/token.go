package models

import "time"

// TokenPair is the credential set returned to a client after login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshRecord tracks one issued refresh token. Rotation keeps FamilyID.
type RefreshRecord struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	FamilyID  string    `json:"family_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked,omitempty"`
}

func (r *RefreshRecord) Remaining(now time.Time) time.Duration {
	return r.ExpiresAt.Sub(now)
}
