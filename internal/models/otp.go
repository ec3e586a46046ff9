package models

import "time"

// OTPRecord is the live one-time passcode for a phone number. At most one
// exists per phone; issuing a new code overwrites it.
type OTPRecord struct {
	CodeHash  string    `json:"code_hash"`
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
