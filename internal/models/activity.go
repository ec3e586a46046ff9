package models

import "time"

const (
	ActionOTPSent = "otp_sent"
	ActionLogin   = "login"
)

// ActivityLog is one audit trail entry.
type ActivityLog struct {
	ID          string    `json:"id" dynamodbav:"id"`
	UserID      string    `json:"user_id" dynamodbav:"user_id"`
	Action      string    `json:"action" dynamodbav:"action"`
	Description string    `json:"description" dynamodbav:"description"`
	Timestamp   time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

func (a *ActivityLog) GetPK() string {
	return "ACTIVITY!" + a.UserID
}

func (a *ActivityLog) GetSK() string {
	return a.Timestamp.UTC().Format(time.RFC3339Nano) + "#" + a.ID
}
