package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

const (
	defaultPollTimeout = 2 * time.Second
	errorPause         = 500 * time.Millisecond
)

// RedisQueue is an at-least-once queue on two Redis lists.
//
// Producers LPUSH onto the pending list. Consumers atomically BLMOVE the
// oldest entry into the processing list and LREM it on Ack, so a task whose
// consumer dies stays in processing until Recover puts it back.
type RedisQueue struct {
	client      redis.UniversalClient
	pending     string
	processing  string
	maxLen      int64
	pollTimeout time.Duration
	logger      logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue creates a queue whose keys live under prefix.
func NewRedisQueue(client redis.UniversalClient, prefix string, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{
		client:      client,
		pending:     prefix + ":tasks:pending",
		processing:  prefix + ":tasks:processing",
		pollTimeout: defaultPollTimeout,
		logger:      logger.Get().Named("redis-queue"),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.maxLen > 0 {
		metrics.UpdateQueueCapacity(int(q.maxLen))
	}
	return q
}

// Recover moves entries left in the processing list back onto the consumer
// end of the pending list and returns how many moved. Call it once at start,
// before any consumer of the same prefix runs.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.LMove(ctx, q.processing, q.pending, "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("failed to requeue orphaned tasks: %w", err)
		}
		n++
	}
	if n > 0 {
		metrics.RecordQueueRequeue(n)
		q.logger.Warn(ctx, "requeued orphaned tasks", logger.Int("count", n))
	}
	return n, nil
}

// Enqueue adds a task to the pending list.
func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	if q.IsClosed() {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	if q.maxLen > 0 {
		n, err := q.client.LLen(ctx, q.pending).Result()
		if err != nil {
			metrics.RecordQueueEnqueueError()
			metrics.RecordErrorByComponent("queue", "redis_error")
			return fmt.Errorf("failed to read queue length: %w", err)
		}
		if n >= q.maxLen {
			metrics.RecordQueueEnqueueError()
			metrics.RecordErrorByComponent("queue", "capacity_exceeded")
			return ErrFull
		}
	}

	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.client.LPush(ctx, q.pending, raw).Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "redis_error")
		return fmt.Errorf("failed to push task: %w", err)
	}
	metrics.RecordQueueEnqueue(string(t.Kind))
	return nil
}

// Dequeue starts a consumer loop feeding the returned channel.
func (q *RedisQueue) Dequeue(ctx context.Context) <-chan Delivery {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			default:
			}

			raw, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", q.pollTimeout).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				metrics.RecordErrorByComponent("queue", "redis_error")
				q.logger.Error(ctx, "failed to move task", logger.Error(err))
				select {
				case <-time.After(errorPause):
				case <-ctx.Done():
					return
				case <-q.done:
					return
				}
				continue
			}

			var t Task
			if err := json.Unmarshal([]byte(raw), &t); err != nil {
				q.logger.Error(ctx, "dropping undecodable task", logger.String("payload", raw), logger.Error(err))
				q.remove(ctx, raw)
				continue
			}

			d := Delivery{Task: t, ack: func(ctx context.Context) error { return q.remove(ctx, raw) }}
			select {
			case out <- d:
				metrics.RecordQueueDequeue()
			case <-ctx.Done():
				return
			case <-q.done:
				// left in processing; Recover returns it on next start
				return
			}
		}
	}()
	return out
}

func (q *RedisQueue) remove(ctx context.Context, raw string) error {
	if err := q.client.LRem(ctx, q.processing, 1, raw).Err(); err != nil {
		metrics.RecordErrorByComponent("queue", "ack_failed")
		return fmt.Errorf("failed to ack task: %w", err)
	}
	return nil
}

// Len returns the number of pending tasks. Redis errors read as zero.
func (q *RedisQueue) Len(ctx context.Context) int {
	n, err := q.client.LLen(ctx, q.pending).Result()
	if err != nil {
		q.logger.Warn(ctx, "failed to read queue length", logger.Error(err))
		return 0
	}
	metrics.UpdateQueueSize(int(n))
	return int(n)
}

// Close stops consumer loops and rejects new tasks. The Redis client is left
// open for its owner to close.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *RedisQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
