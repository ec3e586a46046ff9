package delivery

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/sirupsen/logrus"
)

// BuildChannels instantiates the channels named in cfg.Providers, in order,
// skipping the ones that lack credentials. awsCfg is only used for SNS.
func BuildChannels(_ context.Context, cfg *config.SMSConfig, awsCfg *aws.Config, logger *logrus.Logger) []Channel {
	channels := make([]Channel, 0, len(cfg.Providers))

	for _, name := range cfg.Providers {
		switch name {
		case ProviderTwilio:
			if !cfg.Twilio.Configured() {
				logger.Warn("Twilio credentials not found, skipping Twilio SMS provider")
				continue
			}
			channels = append(channels, NewTwilioChannel(&cfg.Twilio, logger))
			logger.Info("Twilio SMS provider configured")
		case ProviderSNS:
			if !cfg.SNS.Enabled || awsCfg == nil {
				logger.Debug("AWS SNS SMS provider disabled")
				continue
			}
			channels = append(channels, NewSNSChannel(*awsCfg, logger))
			logger.Info("AWS SNS SMS provider configured")
		default:
			logger.WithField("provider", name).Warn("Unknown SMS provider, ignoring")
		}
	}

	return channels
}

// NewDispatcherFromConfig wires the configured channels plus, outside
// production, the log-only fallback.
func NewDispatcherFromConfig(ctx context.Context, cfg *config.Config, awsCfg *aws.Config, logger *logrus.Logger) *Dispatcher {
	channels := BuildChannels(ctx, &cfg.SMS, awsCfg, logger)

	var fallback Channel
	if cfg.SMS.AllowLogFallback {
		fallback = NewLogChannel(logger)
	}
	if len(channels) == 0 {
		if fallback != nil {
			logger.Warn("No SMS provider configured, OTP codes will only be logged")
		} else {
			logger.Error("No SMS provider configured in production, OTP delivery will fail")
		}
	}

	return NewDispatcher(channels, fallback, cfg.SMS.Timeout, cfg.OTP.Expiry, logger)
}
