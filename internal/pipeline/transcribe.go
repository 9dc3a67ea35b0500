package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/domain/errs"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

const maxThemes = 3

// Transcribe runs speech-to-text and analysis for one feedback row.
//
// The row is claimed first; a row that is already terminal is left alone so
// a redelivered task is harmless. Any failure after the claim marks the row
// failed, and the result is written all at once on success.
func (s *Service) Transcribe(ctx context.Context, feedbackID string) error {
	const op = "transcribe"
	if s.Transcriber == nil || s.Analyzer == nil {
		return errs.Errorf(op, errs.ErrConfiguration, "speech-to-text and analysis oracles are required")
	}
	log := s.logger.Named("transcribe")

	f, err := s.Store.ClaimFeedback(ctx, feedbackID)
	if errors.Is(err, repository.ErrNotClaimable) {
		log.Debug(ctx, "feedback already processed", logger.String("feedback_id", feedbackID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	analysis, err := s.analyze(ctx, f)
	if err != nil {
		metrics.RecordTranscription("failed")
		if ferr := s.Store.FailFeedback(ctx, f.ID); ferr != nil {
			log.Error(ctx, "failed to mark feedback failed", logger.String("feedback_id", f.ID), logger.Error(ferr))
		}
		return errs.Wrap(op, errs.ErrUpstreamOracle, err)
	}

	if err := s.Store.CompleteFeedback(ctx, f.ID, analysis); err != nil {
		if errors.Is(err, repository.ErrNotClaimable) {
			log.Warn(ctx, "feedback changed while transcribing", logger.String("feedback_id", f.ID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.RecordTranscription("completed")
	log.Info(ctx, "feedback transcribed",
		logger.String("feedback_id", f.ID),
		logger.String("sentiment", string(analysis.Sentiment)),
		logger.Int("themes", len(analysis.Themes)),
	)
	return nil
}

// analyze downloads the audio and asks both oracles about it.
func (s *Service) analyze(ctx context.Context, f *model.Feedback) (model.Analysis, error) {
	audio, err := s.Blobs.Open(ctx, f.AudioLocation)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("open audio: %w", err)
	}
	defer audio.Close()

	raw, err := s.Transcriber.Transcribe(ctx, audio, path.Base(f.AudioLocation))
	if err != nil {
		return model.Analysis{}, fmt.Errorf("speech-to-text: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return model.Analysis{}, errors.New("speech-to-text returned an empty transcript")
	}

	a, err := s.Analyzer.Analyze(ctx, raw)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("analysis: %w", err)
	}
	if !a.Usable() {
		return model.Analysis{}, errors.New("analysis returned no cleaned transcript")
	}

	return model.Analysis{
		RawTranscript:     raw,
		CleanedTranscript: strings.TrimSpace(a.CleanedTranscript),
		Sentiment:         model.ParseSentiment(strings.ToLower(strings.TrimSpace(a.Sentiment))),
		Themes:            themes(a.Themes),
		Insight:           strings.TrimSpace(a.Insight),
	}, nil
}

// themes trims, drops blanks and duplicates, and keeps at most three.
func themes(in []string) []string {
	out := make([]string, 0, maxThemes)
	seen := make(map[string]bool, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == maxThemes {
			break
		}
	}
	return out
}

// Reprocess returns pending, failed or unlinked completed feedback to
// pending and queues it for transcription again. Linked feedback is refused.
func (s *Service) Reprocess(ctx context.Context, feedbackID string) error {
	const op = "reprocess"
	if err := s.Store.ResetFeedback(ctx, feedbackID); err != nil {
		if errors.Is(err, repository.ErrNotClaimable) {
			return errs.Wrap(op, errs.ErrConflict, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.enqueueTranscribe(ctx, feedbackID); err != nil {
		return fmt.Errorf("%s: enqueue: %w", op, err)
	}
	s.logger.Named("transcribe").Info(ctx, "feedback queued for reprocessing", logger.String("feedback_id", feedbackID))
	return nil
}

// GetFeedback returns one feedback row.
func (s *Service) GetFeedback(ctx context.Context, feedbackID string) (*model.Feedback, error) {
	f, err := s.Store.GetFeedback(ctx, feedbackID)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return f, nil
}
