package lock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/voicebox/pkg/logger"
)

func setupTestRedis(t *testing.T) (*redis.Client, string) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, logger.Init())

	t.Cleanup(func() { client.Close() })
	return client, "voicebox-test-" + uuid.NewString()
}

func TestRedisLocker_Exclusive(t *testing.T) {
	client, prefix := setupTestRedis(t)
	l := NewRedisLocker(client, prefix, WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "client-a")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(waitCtx, "client-a")
	assert.ErrorIs(t, err, ErrNotAcquired)

	unlock()
	again, err := l.Lock(ctx, "client-a")
	require.NoError(t, err)
	again()

	exists, err := client.Exists(ctx, l.buildKey("client-a")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, exists)
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	client, prefix := setupTestRedis(t)
	l := NewRedisLocker(client, prefix, WithTTL(50*time.Millisecond), WithRetryInterval(5*time.Millisecond))
	ctx := context.Background()

	stale, err := l.Lock(ctx, "client-a")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	fresh, err := l.Lock(ctx, "client-a")
	require.NoError(t, err)

	// the first holder's release must not delete the second holder's key
	stale()
	exists, err := client.Exists(ctx, l.buildKey("client-a")).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)

	fresh()
}
