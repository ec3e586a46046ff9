package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/chemtrack/chemtrack/internal/config"
	"github.com/sirupsen/logrus"
)

const ProviderSNS = config.ProviderSNS

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSChannel struct {
	client snsPublisher
	logger *logrus.Logger
}

func NewSNSChannel(awsCfg aws.Config, logger *logrus.Logger) *SNSChannel {
	return &SNSChannel{
		client: sns.NewFromConfig(awsCfg),
		logger: logger,
	}
}

func (c *SNSChannel) Name() string {
	return ProviderSNS
}

func (c *SNSChannel) Send(ctx context.Context, phone, message string) error {
	out, err := c.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish SMS via sns: %w", err)
	}

	messageID := ""
	if out != nil {
		messageID = aws.ToString(out.MessageId)
	}
	c.logger.WithFields(logrus.Fields{
		"phone":      phone,
		"provider":   ProviderSNS,
		"message_id": messageID,
	}).Info("AWS SNS SMS sent")
	return nil
}
