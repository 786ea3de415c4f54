package redis

import (
	"context"
	"encoding/json"

	"hubon-pickup/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Streams are trimmed approximately to this many entries.
const defaultStreamMaxLen = 10000

// StreamClient interface for Redis stream operations
type StreamClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// EventPublisher publishes events to Redis streams
type EventPublisher struct {
	redis  StreamClient
	logger *zap.Logger
	maxLen int64
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(rdb StreamClient, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{
		redis:  rdb,
		logger: logger,
		maxLen: defaultStreamMaxLen,
	}
}

// PublishEvent appends event to stream as JSON under the "data" field and
// returns the entry id.
func (p *EventPublisher) PublishEvent(ctx context.Context, stream, eventType string, event interface{}) (string, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return "", errors.WrapDomainError(err, errors.CodeInternal, "event serialization failed", "failed to marshal "+eventType)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_type": eventType,
			"data":       string(eventJSON),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return "", errors.WrapDomainError(err, errors.CodeUnavailable, "event publication failed", "redis error").WithRetryable(true)
	}

	p.logger.Debug("event published",
		zap.String("stream", stream),
		zap.String("event_type", eventType),
		zap.String("entry_id", id),
	)
	return id, nil
}
