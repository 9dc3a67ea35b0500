package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/okian/voicebox/pkg/logger"
)

const (
	defaultTTL        = 30 * time.Second
	defaultRetryEvery = 50 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every process using the same Redis.
// A holder that dies keeps the key until the TTL expires.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
	logger     logger.Logger
}

var _ Locker = (*RedisLocker)(nil)

// NewRedisLocker creates a locker whose keys live under prefix.
func NewRedisLocker(client redis.UniversalClient, prefix string, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        defaultTTL,
		retryEvery: defaultRetryEvery,
		logger:     logger.Get().Named("redis-lock"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// buildKey builds the Redis key for a lock.
// Format: {prefix}:lock:{key}
func (l *RedisLocker) buildKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.prefix, key)
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	k := l.buildKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		acquired, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// released on a fresh context so a canceled caller still frees the key
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{k}, token).Err(); err != nil {
				l.logger.Warn(releaseCtx, "failed to release lock", logger.String("key", key), logger.Error(err))
			}
		})
	}, nil
}
