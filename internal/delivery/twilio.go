package delivery

import (
	"context"
	"fmt"

	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

const ProviderTwilio = config.ProviderTwilio

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioChannel struct {
	api        messageCreator
	fromNumber string
	logger     *logrus.Logger
}

func NewTwilioChannel(cfg *config.TwilioConfig, logger *logrus.Logger) *TwilioChannel {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioChannel{
		api:        client.Api,
		fromNumber: cfg.PhoneNumber,
		logger:     logger,
	}
}

func (c *TwilioChannel) Name() string {
	return ProviderTwilio
}

// Send posts the message through the Twilio REST API. The SDK call takes no
// context, so it runs in its own goroutine and ctx bounds how long we wait.
func (c *TwilioChannel) Send(ctx context.Context, phone, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(c.fromNumber)
	params.SetBody(message)

	type result struct {
		msg *twilioApi.ApiV2010Message
		err error
	}
	// CreateMessage takes no context. After a timeout the request keeps
	// running and may still deliver, so the next channel can send a duplicate.
	done := make(chan result, 1)
	go func() {
		msg, err := c.api.CreateMessage(params)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("twilio send aborted: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("failed to send SMS via twilio: %w", res.err)
		}
		sid := ""
		if res.msg != nil && res.msg.Sid != nil {
			sid = *res.msg.Sid
		}
		c.logger.WithFields(logrus.Fields{
			"phone":    phone,
			"provider": ProviderTwilio,
			"sid":      sid,
		}).Info("Twilio SMS sent")
		return nil
	}
}
