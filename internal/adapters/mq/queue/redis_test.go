package queue

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

	prefix := "voicebox-test-" + uuid.NewString()
	t.Cleanup(func() {
		client.Del(ctx, prefix+":tasks:pending", prefix+":tasks:processing")
		client.Close()
	})
	return client, prefix
}

func TestRedisQueue_DeliverAndAck(t *testing.T) {
	client, prefix := setupTestRedis(t)
	q := NewRedisQueue(client, prefix, WithPollTimeout(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := NewTask(KindTranscribe, "fb-1")
	second := NewTask(KindScore, "tk-1")
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	assert.Equal(t, 2, q.Len(ctx))

	ch := q.Dequeue(ctx)
	a := <-ch
	b := <-ch
	assert.Equal(t, first.ID, a.ID, "oldest task first")
	assert.Equal(t, KindTranscribe, a.Kind)
	assert.Equal(t, second.ID, b.ID)

	inFlight, err := client.LLen(ctx, prefix+":tasks:processing").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, inFlight)

	require.NoError(t, a.Ack(ctx))
	require.NoError(t, b.Ack(ctx))
	inFlight, err = client.LLen(ctx, prefix+":tasks:processing").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, inFlight)
	require.NoError(t, q.Close())
}

func TestRedisQueue_RecoverRequeuesUnacked(t *testing.T) {
	client, prefix := setupTestRedis(t)
	ctx := context.Background()

	consumerCtx, stop := context.WithCancel(ctx)
	crashed := NewRedisQueue(client, prefix, WithPollTimeout(100*time.Millisecond))
	task := NewTask(KindTranscribe, "fb-orphan")
	require.NoError(t, crashed.Enqueue(ctx, task))
	d := <-crashed.Dequeue(consumerCtx)
	assert.Equal(t, task.ID, d.ID)
	stop() // never acked

	restarted := NewRedisQueue(client, prefix, WithPollTimeout(100*time.Millisecond))
	n, err := restarted.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	select {
	case again := <-restarted.Dequeue(runCtx):
		assert.Equal(t, task.ID, again.ID)
		require.NoError(t, again.Ack(ctx))
	case <-runCtx.Done():
		t.Fatal("orphaned task was not redelivered")
	}
}

func TestRedisQueue_MaxLenAndClose(t *testing.T) {
	client, prefix := setupTestRedis(t)
	ctx := context.Background()
	q := NewRedisQueue(client, prefix, WithMaxLen(1))

	require.NoError(t, q.Enqueue(ctx, NewTask(KindScore, "tk-1")))
	assert.ErrorIs(t, q.Enqueue(ctx, NewTask(KindScore, "tk-2")), ErrFull)

	require.NoError(t, q.Close())
	assert.True(t, q.IsClosed())
	assert.ErrorIs(t, q.Enqueue(ctx, NewTask(KindScore, "tk-3")), ErrClosed)
}
