// Package events publishes timeline events so that session replay tooling
// can place a voice submission on the user's session timeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/voicebox/pkg/logger"
)

// TypeFeedbackSubmitted is emitted once a feedback row is durable.
const TypeFeedbackSubmitted = "feedback_submitted"

// TimelineEvent correlates a submission with a session.
type TimelineEvent struct {
	Type            string    `json:"type"`
	FeedbackID      string    `json:"feedback_id"`
	ClientID        string    `json:"client_id"`
	SessionID       string    `json:"session_id"`
	DurationSeconds int       `json:"duration"`
	AudioLocation   string    `json:"audio_url"`
	OccurredAt      time.Time `json:"timestamp"`
}

// Publisher delivers timeline events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e TimelineEvent) error
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher publishes on "{prefix}:timeline".
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: Channel(prefix)}
}

// Channel returns the pub/sub channel name for prefix.
func Channel(prefix string) string {
	return prefix + ":timeline"
}

func (p *RedisPublisher) Publish(ctx context.Context, e TimelineEvent) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode timeline event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish timeline event: %w", err)
	}
	return nil
}

// LogPublisher writes events to the log. Used when no Redis is configured.
type LogPublisher struct {
	logger logger.Logger
}

var _ Publisher = (*LogPublisher)(nil)

// NewLogPublisher creates a LogPublisher on the global logger.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{logger: logger.Get().Named("timeline")}
}

func (p *LogPublisher) Publish(ctx context.Context, e TimelineEvent) error {
	p.logger.Info(ctx, e.Type,
		logger.String("feedback_id", e.FeedbackID),
		logger.String("client_id", e.ClientID),
		logger.String("session_id", e.SessionID),
		logger.Int("duration", e.DurationSeconds),
		logger.String("audio_location", e.AudioLocation),
	)
	return nil
}
