package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordCacheHit(cache string)  { m.Called(cache) }
func (m *MockRecorder) RecordCacheMiss(cache string) { m.Called(cache) }

type hubEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func okStatus(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func missCmd(ctx context.Context) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetErr(redis.Nil)
	return cmd
}

func TestCacheService_GetSet(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	recorder := new(MockRecorder)
	cache := NewService(mockRedis, "hub", "hubon", 5*time.Minute, recorder, nil)

	key := cache.Key("42")
	value := hubEntry{ID: 42, Name: "Downtown"}
	valueJSON, _ := json.Marshal(value)

	mockRedis.On("Set", ctx, key, valueJSON, 5*time.Minute).Return(okStatus(ctx)).Once()
	require.NoError(t, cache.Set(ctx, key, value))

	stringCmd := redis.NewStringCmd(ctx)
	stringCmd.SetVal(string(valueJSON))
	mockRedis.On("Get", ctx, key).Return(stringCmd).Once()
	recorder.On("RecordCacheHit", "hub").Once()

	var result hubEntry
	found, err := cache.Get(ctx, key, &result)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, value, result)

	mockRedis.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestCacheService_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	recorder := new(MockRecorder)
	cache := NewService(mockRedis, "hub", "hubon", time.Minute, recorder, nil)

	mockRedis.On("Get", ctx, "hubon:hub:missing").Return(missCmd(ctx)).Once()
	recorder.On("RecordCacheMiss", "hub").Once()

	var result hubEntry
	found, err := cache.Get(ctx, "hubon:hub:missing", &result)
	assert.NoError(t, err)
	assert.False(t, found)

	recorder.AssertExpectations(t)
}

func TestCacheService_Get_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	cache := NewService(mockRedis, "hub", "", time.Minute, nil, nil)

	stringCmd := redis.NewStringCmd(ctx)
	stringCmd.SetVal("{not json")
	mockRedis.On("Get", ctx, "hub:1").Return(stringCmd).Once()

	var result hubEntry
	found, err := cache.Get(ctx, "hub:1", &result)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestCacheService_Delete(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	cache := NewService(mockRedis, "customer", "hubon", time.Minute, nil, nil)

	intCmd := redis.NewIntCmd(ctx)
	intCmd.SetVal(1)
	mockRedis.On("Del", ctx, []string{"hubon:customer:sess-1"}).Return(intCmd).Once()

	assert.NoError(t, cache.Delete(ctx, cache.Key("sess-1")))
	mockRedis.AssertExpectations(t)
}

func TestCacheService_Fetch_Miss(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	cache := NewService(mockRedis, "hub", "hubon", time.Minute, nil, nil)
	key := cache.Key("7")
	loaded := hubEntry{ID: 7, Name: "Uptown"}
	loadedJSON, _ := json.Marshal(loaded)

	mockRedis.On("Get", ctx, key).Return(missCmd(ctx)).Once()
	mockRedis.On("Set", ctx, key, loadedJSON, time.Minute).Return(okStatus(ctx)).Once()

	calls := 0
	var got hubEntry
	err := cache.Fetch(ctx, key, &got, func(context.Context) error {
		calls++
		got = loaded
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, loaded, got)
	assert.Equal(t, 1, calls)
	mockRedis.AssertExpectations(t)
}

func TestCacheService_Fetch_Hit(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	cache := NewService(mockRedis, "hub", "hubon", time.Minute, nil, nil)
	key := cache.Key("7")

	stringCmd := redis.NewStringCmd(ctx)
	stringCmd.SetVal(`{"id":7,"name":"Uptown"}`)
	mockRedis.On("Get", ctx, key).Return(stringCmd).Once()

	var got hubEntry
	err := cache.Fetch(ctx, key, &got, func(context.Context) error {
		t.Fatal("loader must not run on a hit")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, hubEntry{ID: 7, Name: "Uptown"}, got)
	mockRedis.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheService_Fetch_RedisDownFallsThrough(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	recorder := new(MockRecorder)
	cache := NewService(mockRedis, "hub", "hubon", time.Minute, recorder, nil)
	key := cache.Key("7")

	getCmd := redis.NewStringCmd(ctx)
	getCmd.SetErr(errors.New("connection refused"))
	mockRedis.On("Get", ctx, key).Return(getCmd).Once()
	setCmd := redis.NewStatusCmd(ctx)
	setCmd.SetErr(errors.New("connection refused"))
	mockRedis.On("Set", ctx, key, mock.Anything, time.Minute).Return(setCmd).Once()
	recorder.On("RecordCacheMiss", "hub").Once()

	var got hubEntry
	err := cache.Fetch(ctx, key, &got, func(context.Context) error {
		got = hubEntry{ID: 7}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, got.ID)
	recorder.AssertExpectations(t)
}

func TestCacheService_Fetch_LoaderErrorNotCached(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	cache := NewService(mockRedis, "hub", "hubon", time.Minute, nil, nil)
	key := cache.Key("7")
	loadErr := errors.New("carrier unavailable")

	mockRedis.On("Get", ctx, key).Return(missCmd(ctx)).Once()

	var got hubEntry
	err := cache.Fetch(ctx, key, &got, func(context.Context) error {
		return loadErr
	})

	assert.ErrorIs(t, err, loadErr)
	mockRedis.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCacheService_BuildKey(t *testing.T) {
	assert.Equal(t, "hubon:hub:42", BuildKey("hubon", "hub", "42"))
	assert.Equal(t, "hub:42", BuildKey("", "hub", "42"))
	assert.Equal(t, "hubon:customer", BuildKey("hubon", "customer", ""))
}
