// Command seeduser registers a user for phone login in the users table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/chemtrack/chemtrack/internal/repository"
	"github.com/chemtrack/chemtrack/internal/service"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	phone := pflag.StringP("phone", "p", "", "phone number in international format")
	email := pflag.StringP("email", "e", "", "email address")
	firstName := pflag.String("first-name", "", "first name")
	lastName := pflag.String("last-name", "", "last name")
	role := pflag.StringP("role", "r", string(models.RoleLabStaff), "role (admin, lab_staff, product, account, all_users)")
	approved := pflag.Bool("approved", true, "mark the account approved")
	table := pflag.String("table", envOr("DYNAMODB_TABLE_NAME", "ChemTrack"), "DynamoDB table name")
	region := pflag.String("region", envOr("DYNAMODB_REGION", "us-east-1"), "AWS region")
	endpoint := pflag.String("endpoint", os.Getenv("DYNAMODB_ENDPOINT"), "DynamoDB endpoint override")
	pflag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	normalized, err := service.NormalizePhone(*phone)
	if err != nil {
		logger.WithField("phone", *phone).Fatal("Invalid phone number format")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(*region)}
	if *endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: *endpoint, SigningRegion: region}, nil
			})))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load AWS config")
	}

	repo := repository.NewUserRepository(dynamodb.NewFromConfig(awsCfg), *table, logger)
	user := &models.User{
		PhoneNumber: normalized,
		Email:       *email,
		FirstName:   *firstName,
		LastName:    *lastName,
		Role:        models.Role(*role),
		Approved:    *approved,
	}

	if err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			logger.WithField("phone", normalized).Fatal("User already exists")
		}
		logger.WithError(err).Fatal("Failed to create user")
	}

	fmt.Printf("created user %s for %s (approved=%t)\n", user.ID, user.PhoneNumber, user.Approved)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
