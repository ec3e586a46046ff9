package delivery

import (
	"context"

	"github.com/sirupsen/logrus"
)

const ProviderLog = "log"

// LogChannel writes the message to the operational log instead of sending
// it. It always succeeds and is only wired outside production.
type LogChannel struct {
	logger *logrus.Logger
}

func NewLogChannel(logger *logrus.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string {
	return ProviderLog
}

func (c *LogChannel) Send(_ context.Context, phone, message string) error {
	c.logger.WithFields(logrus.Fields{
		"phone":    phone,
		"provider": ProviderLog,
		"message":  message,
	}).Warn("[MOCK SMS] OTP message not sent, logged for development")
	return nil
}
