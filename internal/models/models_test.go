package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPRecord_Expired(t *testing.T) {
	expiresAt := time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC)
	record := &OTPRecord{ExpiresAt: expiresAt}

	assert.False(t, record.Expired(expiresAt.Add(-time.Second)))
	assert.False(t, record.Expired(expiresAt))
	assert.True(t, record.Expired(expiresAt.Add(time.Nanosecond)))
}

func TestKeys(t *testing.T) {
	user := &User{PhoneNumber: "+15551234567"}
	assert.Equal(t, "USER!+15551234567", user.GetPK())
	assert.Equal(t, "METADATA", user.GetSK())

	entry := &ActivityLog{
		ID:        "abc",
		UserID:    "user-1",
		Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 500, time.FixedZone("IST", 19800)),
	}
	assert.Equal(t, "ACTIVITY!user-1", entry.GetPK())
	assert.Equal(t, "2024-03-01T03:30:00.0000005Z#abc", entry.GetSK())
}

func TestRefreshRecord_Remaining(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	record := &RefreshRecord{ExpiresAt: now.Add(90 * time.Minute)}

	assert.Equal(t, 90*time.Minute, record.Remaining(now))
	assert.Negative(t, int64(record.Remaining(now.Add(2*time.Hour))))
}
