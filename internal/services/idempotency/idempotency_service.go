package idempotency

import (
	"context"
	"fmt"
	"time"

	"hubon-pickup/pkg/errors"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the claim only while it still carries the caller's
// token, so an expired claim taken over by another caller is left alone.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisClient interface for Redis operations
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Service guards non-idempotent operations so only one caller at a time can
// run them for a given key.
type Service struct {
	redis  RedisClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewService creates a guard whose claims expire after ttl if never released.
func NewService(rdb RedisClient, prefix string, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		redis:  rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *Service) buildKey(key string) string {
	return fmt.Sprintf("%s:inflight:%s", s.prefix, key)
}

// Acquire claims key. It returns CodeConflict while another claim is held and
// CodeUnavailable when Redis cannot be reached. The returned release func must
// be called once the operation finishes.
func (s *Service) Acquire(ctx context.Context, key string) (func(), error) {
	redisKey := s.buildKey(key)
	token := uuid.NewString()
	ok, err := s.redis.SetNX(ctx, redisKey, token, s.ttl).Result()
	if err != nil {
		return nil, errors.WrapDomainError(err, errors.CodeUnavailable, "idempotency check failed", "redis error").WithRetryable(true)
	}
	if !ok {
		return nil, errors.NewDomainError(errors.CodeConflict, "request already in progress", "another submission for "+key+" is still running")
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		deleted, err := s.redis.Eval(releaseCtx, releaseScript, []string{redisKey}, token).Int64()
		if err != nil {
			s.logger.Warn("failed to release idempotency key", zap.String("key", redisKey), zap.Error(err))
			return
		}
		if deleted == 0 {
			s.logger.Warn("idempotency key expired before release", zap.String("key", redisKey), zap.Duration("ttl", s.ttl))
		}
	}, nil
}
