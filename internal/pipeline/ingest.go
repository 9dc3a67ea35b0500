package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/voicebox/internal/adapters/blob"
	"github.com/okian/voicebox/internal/adapters/events"
	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

const defaultAudioExt = ".webm"

// Submission is one uploaded recording and its session context.
type Submission struct {
	Audio           io.Reader `json:"audio" validate:"required"`
	Filename        string    `json:"filename"`
	ClientID        string    `json:"client_id" validate:"required"`
	SessionID       string    `json:"session_id" validate:"required"`
	PageURL         string    `json:"page_url"`
	DurationSeconds int       `json:"duration" validate:"gte=0"`
}

// Ingest stores the audio, records a pending feedback row and queues its
// transcription. It returns once the row is durable; queueing and the
// timeline event are best effort.
func (s *Service) Ingest(ctx context.Context, sub Submission) (string, error) {
	const op = "ingest"
	if err := check(op, sub); err != nil {
		return "", err
	}

	id := uuid.NewString()
	location, err := s.Blobs.Put(ctx, audioKey(sub.ClientID, id, sub.Filename), sub.Audio)
	switch {
	case errors.Is(err, blob.ErrTooLarge), errors.Is(err, blob.ErrEmptyObject), errors.Is(err, blob.ErrInvalidKey):
		return "", errs.Wrap(op, errs.ErrValidation, err)
	case err != nil:
		return "", fmt.Errorf("%s: store audio: %w", op, err)
	}

	f := &model.Feedback{
		ID:              id,
		ClientID:        sub.ClientID,
		SessionID:       sub.SessionID,
		PageURL:         sub.PageURL,
		AudioLocation:   location,
		Status:          model.FeedbackPending,
		DurationSeconds: sub.DurationSeconds,
		CreatedAt:       s.now(),
	}
	if err := s.Store.CreateFeedback(ctx, f); err != nil {
		if derr := s.Blobs.Delete(context.WithoutCancel(ctx), location); derr != nil {
			s.logger.Named("ingest").Warn(ctx, "failed to remove orphaned audio",
				logger.String("audio_location", location),
				logger.Error(derr),
			)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordFeedbackIngested()

	log := s.logger.Named("ingest")
	if err := s.Events.Publish(ctx, events.TimelineEvent{
		Type:            events.TypeFeedbackSubmitted,
		FeedbackID:      f.ID,
		ClientID:        f.ClientID,
		SessionID:       f.SessionID,
		DurationSeconds: f.DurationSeconds,
		AudioLocation:   f.AudioLocation,
		OccurredAt:      f.CreatedAt,
	}); err != nil {
		metrics.RecordErrorByComponent("ingest", "publish_failed")
		log.Warn(ctx, "failed to publish timeline event", logger.String("feedback_id", id), logger.Error(err))
	}

	if err := s.enqueueTranscribe(ctx, id); err != nil {
		metrics.RecordErrorByComponent("ingest", "enqueue_failed")
		log.Error(ctx, "failed to enqueue transcription", logger.String("feedback_id", id), logger.Error(err))
	}
	return id, nil
}

// audioKey places recordings under their client, keeping the upload's extension.
func audioKey(clientID, id, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	if ext == "" || len(ext) > 8 {
		ext = defaultAudioExt
	}
	return clientID + "/" + id + ext
}
