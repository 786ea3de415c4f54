package ratelimit

import (
	"context"
	"fmt"
	"time"

	"hubon-pickup/internal/config"
	"hubon-pickup/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Decision is the outcome of one rate limit check. Remaining is -1 when
// limiting is disabled.
type Decision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// Service counts requests per subject in fixed windows stored in Redis.
type Service struct {
	redis  RedisClient
	prefix string
	config config.RateLimitConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewService(rdb RedisClient, prefix string, cfg config.RateLimitConfig, logger *zap.Logger) *Service {
	return &Service{
		redis:  rdb,
		prefix: prefix,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Allow counts one request for subject and reports whether it fits in the
// current window. Redis failures return CodeUnavailable.
func (s *Service) Allow(ctx context.Context, subject string) (Decision, error) {
	if !s.config.Enabled {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", s.prefix, subject)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, errors.WrapDomainError(err, errors.CodeUnavailable, "rate limiting unavailable", "redis error").WithRetryable(true)
	}

	if count == 1 {
		if err := s.redis.Expire(ctx, key, s.config.Window).Err(); err != nil {
			s.logger.Warn("failed to set expire on rate limit key", zap.String("key", key), zap.Error(err))
		}
	}

	ttl := s.redis.TTL(ctx, key).Val()
	if ttl < 0 {
		// Key left without an expiry by a failed Expire.
		if err := s.redis.Expire(ctx, key, s.config.Window).Err(); err != nil {
			s.logger.Warn("failed to repair rate limit key expiry", zap.String("key", key), zap.Error(err))
		}
		ttl = s.config.Window
	}

	limit := int64(s.config.Requests)
	decision := Decision{
		Limit:   limit,
		ResetAt: s.now().Add(ttl),
	}
	if count > limit {
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = limit - count
	return decision, nil
}
