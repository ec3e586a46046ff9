package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chemtrack/chemtrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_Record(t *testing.T) {
	var captured *dynamodb.PutItemInput
	client := &mockDynamoDB{PutItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
		captured = params
		return &dynamodb.PutItemOutput{}, nil
	}}
	repo := NewActivityRepository(client, "ChemTrack", testLogger())

	require.NoError(t, repo.Record(context.Background(), "user-1", models.ActionLogin, "User logged in via OTP: +15551234567"))

	require.NotNil(t, captured)
	assert.Equal(t, "ACTIVITY!user-1", stringAttr(t, captured.Item, "PK"))
	sk := stringAttr(t, captured.Item, "SK")
	id := stringAttr(t, captured.Item, "id")
	assert.True(t, strings.HasSuffix(sk, "#"+id), "sort key %q", sk)
	assert.Equal(t, models.ActionLogin, stringAttr(t, captured.Item, "action"))
	assert.Equal(t, "user-1", stringAttr(t, captured.Item, "user_id"))
}

func TestActivityRepository_RecordError(t *testing.T) {
	client := &mockDynamoDB{PutItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
		return nil, errors.New("access denied")
	}}
	repo := NewActivityRepository(client, "ChemTrack", testLogger())

	assert.Error(t, repo.Record(context.Background(), "user-1", models.ActionOTPSent, "OTP sent"))
}
