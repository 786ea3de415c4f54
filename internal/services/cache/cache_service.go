package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient interface for Redis operations
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Recorder receives hit/miss counts per named cache.
type Recorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// Service is a JSON cache over Redis. Each Service owns one key namespace.
type Service struct {
	redis    RedisClient
	name     string
	prefix   string
	ttl      time.Duration
	recorder Recorder
	logger   *zap.Logger
}

// NewService creates a cache named name whose keys live under prefix. A nil
// recorder disables metrics.
func NewService(redis RedisClient, name, prefix string, ttl time.Duration, recorder Recorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		redis:    redis,
		name:     name,
		prefix:   prefix,
		ttl:      ttl,
		recorder: recorder,
		logger:   logger,
	}
}

// Key builds the namespaced key for parts.
func (s *Service) Key(parts ...string) string {
	return BuildKey(s.prefix, append([]string{s.name}, parts...)...)
}

// Get retrieves a value from cache
func (s *Service) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		s.recordMiss()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get error: %w", err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	s.recordHit()
	return true, nil
}

// Set stores a value in cache
func (s *Service) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := s.redis.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}

	return nil
}

// Delete removes a value from cache
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.redis.Del(ctx, key).Err()
}

// Fetch fills dest from the cache, or calls load to fill it and caches the
// result. Redis failures are logged and fall through to load.
func (s *Service) Fetch(ctx context.Context, key string, dest interface{}, load func(context.Context) error) error {
	found, err := s.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("cache read failed, loading from source",
			zap.String("cache", s.name),
			zap.String("key", key),
			zap.Error(err),
		)
		s.recordMiss()
	}
	if found {
		return nil
	}

	if err := load(ctx); err != nil {
		return err
	}

	if err := s.Set(ctx, key, dest); err != nil {
		s.logger.Warn("cache write failed",
			zap.String("cache", s.name),
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return nil
}

func (s *Service) recordHit() {
	if s.recorder != nil {
		s.recorder.RecordCacheHit(s.name)
	}
}

func (s *Service) recordMiss() {
	if s.recorder != nil {
		s.recorder.RecordCacheMiss(s.name)
	}
}

// BuildKey builds a cache key with prefix. Empty parts are skipped.
func BuildKey(prefix string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if prefix != "" {
		segments = append(segments, prefix)
	}
	for _, part := range parts {
		if part != "" {
			segments = append(segments, part)
		}
	}
	return strings.Join(segments, ":")
}
