package lock

import "time"

// Option applies a configuration option to the RedisLocker.
type Option func(*RedisLocker)

// WithTTL bounds how long a lock survives a holder that never releases it.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how often a waiting Lock call retries.
func WithRetryInterval(d time.Duration) Option {
	return func(l *RedisLocker) {
		if d > 0 {
			l.retryEvery = d
		}
	}
}
