package queue

import (
	"time"

	"github.com/okian/voicebox/pkg/logger"
)

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithBufferSize sets the buffer size for the task channel.
func WithBufferSize(size int) Option {
	return func(q *InMemoryQueue) {
		if size > 0 {
			q.bufferSize = size
		}
	}
}

// RedisOption applies a configuration option to the RedisQueue.
type RedisOption func(*RedisQueue)

// WithMaxLen caps the pending list; zero means unbounded.
func WithMaxLen(n int64) RedisOption {
	return func(q *RedisQueue) {
		if n >= 0 {
			q.maxLen = n
		}
	}
}

// WithPollTimeout sets how long one blocking move waits before the consumer
// re-checks for shutdown.
func WithPollTimeout(d time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if d > 0 {
			q.pollTimeout = d
		}
	}
}

// WithRedisLogger sets a custom logger for the queue.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(q *RedisQueue) {
		if l != nil {
			q.logger = l
		}
	}
}
