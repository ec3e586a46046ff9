package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type mockMessageCreator struct {
	CreateMessageFunc func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

func (m *mockMessageCreator) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	return m.CreateMessageFunc(params)
}

func TestTwilioChannel_Send(t *testing.T) {
	var captured *twilioApi.CreateMessageParams
	sid := "SM123"
	ch := &TwilioChannel{
		api: &mockMessageCreator{CreateMessageFunc: func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
			captured = params
			return &twilioApi.ApiV2010Message{Sid: &sid}, nil
		}},
		fromNumber: "+15550000000",
		logger:     testLogger(),
	}

	require.NoError(t, ch.Send(context.Background(), "+15551234567", "hello"))
	require.NotNil(t, captured)
	assert.Equal(t, "+15551234567", *captured.To)
	assert.Equal(t, "+15550000000", *captured.From)
	assert.Equal(t, "hello", *captured.Body)
	assert.Equal(t, ProviderTwilio, ch.Name())
}

func TestTwilioChannel_SendError(t *testing.T) {
	ch := &TwilioChannel{
		api: &mockMessageCreator{CreateMessageFunc: func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
			return nil, errors.New("status: 400, unverified number")
		}},
		logger: testLogger(),
	}

	err := ch.Send(context.Background(), "+15551234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unverified number")
}

func TestTwilioChannel_SendHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ch := &TwilioChannel{
		api: &mockMessageCreator{CreateMessageFunc: func(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
			<-release
			return nil, nil
		}},
		logger: testLogger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := ch.Send(ctx, "+15551234567", "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
