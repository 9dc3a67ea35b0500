// Package pipeline implements the feedback stages: ingestion, transcription
// and analysis, consolidation into tickets, scoring, batch scoring and
// gray-area synthesis, plus the ticket operations around them.
//
// Stages never call each other directly. A stage that triggers another one
// enqueues a task; the worker pool runs it through Handlers.
package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/okian/voicebox/internal/adapters/blob"
	"github.com/okian/voicebox/internal/adapters/events"
	"github.com/okian/voicebox/internal/adapters/lock"
	"github.com/okian/voicebox/internal/adapters/mq/queue"
	"github.com/okian/voicebox/internal/adapters/mq/worker"
	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/domain/dedupe"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/pkg/logger"
)

// Defaults for tunables that configuration may override.
const (
	DefaultConfidenceThreshold = 0.70
	DefaultFeedbackLimit       = 100
	maxCandidates              = 5
)

// Transcriber converts recorded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Analyzer cleans a raw transcript and extracts sentiment, themes and insight.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (oracle.Analysis, error)
}

// Matcher decides whether feedback belongs to an existing ticket.
type Matcher interface {
	Match(ctx context.Context, f model.Feedback, candidates []model.Ticket) (oracle.Match, error)
}

// Judge produces the raw scoring judgments for a ticket.
type Judge interface {
	Judge(ctx context.Context, t model.Ticket, feedback []model.Feedback) (scoring.Judgments, error)
}

// Generator proposes tickets for needs implied across feedback.
type Generator interface {
	Generate(ctx context.Context, feedback []model.Feedback, tickets []model.Ticket) ([]oracle.Candidate, error)
}

// Deps are the collaborators the stages run against. Store, Blobs and Queue
// are required. A nil oracle makes the stages that need it fail with a
// configuration error.
type Deps struct {
	Store   repository.Store
	Blobs   blob.Store
	Queue   queue.Queue
	Locker  lock.Locker
	Events  events.Publisher
	Deduper dedupe.Deduper

	Transcriber Transcriber
	Analyzer    Analyzer
	Matcher     Matcher
	Judge       Judge
	Generator   Generator
}

// Service runs the pipeline stages.
type Service struct {
	Deps

	threshold     float64
	feedbackLimit int
	now           func() time.Time
	logger        logger.Logger

	background sync.WaitGroup
}

// New validates deps and applies options.
func New(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("pipeline: store is required")
	case deps.Blobs == nil:
		return nil, errors.New("pipeline: blob store is required")
	case deps.Queue == nil:
		return nil, errors.New("pipeline: queue is required")
	}

	s := &Service{
		Deps:          deps,
		threshold:     DefaultConfidenceThreshold,
		feedbackLimit: DefaultFeedbackLimit,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.Get().Named("pipeline"),
	}
	if s.Locker == nil {
		s.Locker = lock.NewMemoryLocker()
	}
	if s.Events == nil {
		s.Events = events.NewLogPublisher()
	}
	if s.Deduper == nil {
		s.Deduper = dedupe.NewInMemoryDeduper()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handlers routes queued tasks to their stages.
func (s *Service) Handlers() worker.Handlers {
	return worker.Handlers{
		queue.KindTranscribe: func(ctx context.Context, t queue.Task) error {
			return s.Transcribe(ctx, t.SubjectID)
		},
		queue.KindScore: func(ctx context.Context, t queue.Task) error {
			// released first so a trigger arriving mid-run queues a fresh score
			s.Deduper.Unrecord(ctx, scoreKey(t.SubjectID))
			_, err := s.ScoreTicket(ctx, t.SubjectID)
			return err
		},
	}
}

// Wait blocks until detached background work (batch scoring) finishes.
func (s *Service) Wait() {
	s.background.Wait()
}

func scoreKey(ticketID string) string {
	return "score:" + ticketID
}

func (s *Service) enqueueTranscribe(ctx context.Context, feedbackID string) error {
	return s.Queue.Enqueue(ctx, queue.NewTask(queue.KindTranscribe, feedbackID))
}

// enqueueScore queues a score task unless one is already pending for the
// ticket. Failures are logged only: the trigger has already succeeded.
func (s *Service) enqueueScore(ctx context.Context, ticketID string) {
	key := scoreKey(ticketID)
	if s.Deduper.SeenAndRecord(ctx, key) {
		s.logger.Debug(ctx, "score already queued", logger.String("ticket_id", ticketID))
		return
	}
	if err := s.Queue.Enqueue(ctx, queue.NewTask(queue.KindScore, ticketID)); err != nil {
		s.Deduper.Unrecord(ctx, key)
		s.logger.Warn(ctx, "failed to enqueue scoring",
			logger.String("ticket_id", ticketID),
			logger.Error(err),
		)
	}
}
