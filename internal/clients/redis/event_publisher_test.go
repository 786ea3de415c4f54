package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	return mockArgs.Get(0).(*redis.StringCmd)
}

func TestEventPublisher_PublishEvent_Success(t *testing.T) {
	mockRedis := new(MockRedisClient)
	publisher := NewEventPublisher(mockRedis, zap.NewNop())

	event := models.TransportEvent{
		EventID:     "evt-1",
		EventType:   "transport.created",
		SessionID:   "offline_shop.myshopify.com",
		OrderID:     "1001",
		TransportID: "555",
		OccurredAt:  time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	var captured *redis.XAddArgs
	stringCmd := redis.NewStringCmd(context.Background())
	stringCmd.SetVal("1727784000000-0")
	mockRedis.On("XAdd", mock.Anything, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		captured = args
		return args.Stream == "hubon:transport_events"
	})).Return(stringCmd)

	id, err := publisher.PublishEvent(context.Background(), "hubon:transport_events", "transport.created", event)

	require.NoError(t, err)
	assert.Equal(t, "1727784000000-0", id)
	assert.True(t, captured.Approx)
	assert.Equal(t, int64(defaultStreamMaxLen), captured.MaxLen)

	values, ok := captured.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "transport.created", values["event_type"])

	var decoded models.TransportEvent
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
	assert.Equal(t, event, decoded)
	mockRedis.AssertExpectations(t)
}

func TestEventPublisher_PublishEvent_SerializationFailure(t *testing.T) {
	mockRedis := new(MockRedisClient)
	publisher := NewEventPublisher(mockRedis, zap.NewNop())

	_, err := publisher.PublishEvent(context.Background(), "stream", "transport.created", make(chan int))

	assert.True(t, errors.HasCode(err, errors.CodeInternal))
	mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
}

func TestEventPublisher_PublishEvent_RedisError(t *testing.T) {
	mockRedis := new(MockRedisClient)
	publisher := NewEventPublisher(mockRedis, zap.NewNop())

	stringCmd := redis.NewStringCmd(context.Background())
	stringCmd.SetErr(redis.ErrClosed)
	mockRedis.On("XAdd", mock.Anything, mock.Anything).Return(stringCmd)

	_, err := publisher.PublishEvent(context.Background(), "stream", "transport.created", map[string]string{"order_id": "1"})

	domainErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeUnavailable, domainErr.Code)
	assert.True(t, domainErr.Retryable)
	assert.ErrorIs(t, err, redis.ErrClosed)
}
