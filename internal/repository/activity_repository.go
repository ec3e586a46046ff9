package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ActivityRepository appends audit entries to the activity log, one item per
// event under the acting user's partition.
type ActivityRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *logrus.Logger
}

func NewActivityRepository(client DynamoDBAPI, tableName string, logger *logrus.Logger) *ActivityRepository {
	return &ActivityRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func (r *ActivityRepository) Record(ctx context.Context, identityID, action, description string) error {
	entry := &models.ActivityLog{
		ID:          uuid.New().String(),
		UserID:      identityID,
		Action:      action,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal activity log: %w", err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: entry.GetPK()}
	item["SK"] = &types.AttributeValueMemberS{Value: entry.GetSK()}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		r.logger.WithError(err).WithField("action", action).Error("Failed to write activity log to DynamoDB")
		return fmt.Errorf("failed to record activity: %w", err)
	}

	return nil
}
