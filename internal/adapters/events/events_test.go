package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/voicebox/pkg/logger"
)

func sampleEvent() TimelineEvent {
	return TimelineEvent{
		Type:            TypeFeedbackSubmitted,
		FeedbackID:      "fb-1",
		ClientID:        "acme",
		SessionID:       "sess-9",
		DurationSeconds: 12,
		AudioLocation:   "acme/fb-1.webm",
		OccurredAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestLogPublisher(t *testing.T) {
	Convey("Given a log publisher writing JSON", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithFormat(logger.FormatJSON), logger.WithWriter(&buf)), ShouldBeNil)
		p := NewLogPublisher()

		Convey("Publishing logs the event fields", func() {
			So(p.Publish(context.Background(), sampleEvent()), ShouldBeNil)
			out := buf.String()
			So(out, ShouldContainSubstring, `"msg":"feedback_submitted"`)
			So(out, ShouldContainSubstring, `"session_id":"sess-9"`)
			So(out, ShouldContainSubstring, `"duration":12`)
		})
	})
}

func TestRedisPublisher(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer client.Close()

	Convey("Given a subscriber on the timeline channel", t, func() {
		prefix := "voicebox-test-" + uuid.NewString()
		sub := client.Subscribe(ctx, Channel(prefix))
		defer sub.Close()
		_, err := sub.Receive(ctx)
		So(err, ShouldBeNil)

		Convey("Publishing delivers the JSON event", func() {
			p := NewRedisPublisher(client, prefix)
			So(p.Publish(ctx, sampleEvent()), ShouldBeNil)

			select {
			case msg := <-sub.Channel():
				var got TimelineEvent
				So(json.Unmarshal([]byte(msg.Payload), &got), ShouldBeNil)
				So(got, ShouldResemble, sampleEvent())
			case <-time.After(2 * time.Second):
				t.Fatal("no timeline event received")
			}
		})
	})
}
