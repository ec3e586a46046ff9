package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrUserExists = errors.New("user already exists")

const userPKPrefix = "USER!"

// UserRepository reads and registers accounts. One item per user, keyed by
// phone number so login can resolve an account with a single GetItem.
type UserRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *logrus.Logger
}

func NewUserRepository(client DynamoDBAPI, tableName string, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

func userKey(user *models.User) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: user.GetPK()},
		"SK": &types.AttributeValueMemberS{Value: user.GetSK()},
	}
}

// GetByPhoneNumber returns nil, nil when no user is registered for phoneNumber.
func (r *UserRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*models.User, error) {
	log := r.logger.WithField("phone", phoneNumber)

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       userKey(&models.User{PhoneNumber: phoneNumber}),
	})
	if err != nil {
		log.WithError(err).Error("Failed to get user from DynamoDB")
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var user models.User
	if err := attributevalue.UnmarshalMap(out.Item, &user); err != nil {
		log.WithError(err).Error("Failed to unmarshal user from DynamoDB")
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}

	// The partition key is authoritative for the phone number.
	if pk, ok := out.Item["PK"].(*types.AttributeValueMemberS); ok {
		user.PhoneNumber = strings.TrimPrefix(pk.Value, userPKPrefix)
	}

	return &user, nil
}

// Create registers user. It fails with ErrUserExists if the phone number is
// already taken.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt

	item, err := attributevalue.MarshalMap(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	for name, value := range userKey(user) {
		item[name] = value
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})

	var conditionFailed *types.ConditionalCheckFailedException
	switch {
	case err == nil:
		r.logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"phone":   user.PhoneNumber,
			"role":    user.Role,
		}).Info("User created")
		return nil
	case errors.As(err, &conditionFailed):
		return ErrUserExists
	default:
		r.logger.WithError(err).WithField("phone", user.PhoneNumber).Error("Failed to create user in DynamoDB")
		return fmt.Errorf("failed to create user: %w", err)
	}
}
