package pipeline_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/okian/voicebox/internal/adapters/blob"
	"github.com/okian/voicebox/internal/adapters/events"
	"github.com/okian/voicebox/internal/adapters/mq/queue"
	"github.com/okian/voicebox/internal/adapters/repository"
	"github.com/okian/voicebox/internal/domain/model"
	"github.com/okian/voicebox/internal/domain/oracle"
	"github.com/okian/voicebox/internal/domain/scoring"
	"github.com/okian/voicebox/internal/pipeline"
	"github.com/okian/voicebox/pkg/logger"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// fakeOracles scripts every oracle and counts calls.
type fakeOracles struct {
	mu sync.Mutex

	transcript    string
	transcribeErr error
	transcribes   int

	analysis   oracle.Analysis
	analyzeErr error

	match      oracle.Match
	matchErr   error
	matches    int
	candidates []model.Ticket

	judgments scoring.Judgments
	judgeErr  error
	judges    int

	proposals   []oracle.Candidate
	generateErr error
	generates   int
	shown       []model.Feedback
}

func newFakeOracles() *fakeOracles {
	return &fakeOracles{
		transcript: "um so I really want like a dark mode",
		analysis: oracle.Analysis{
			CleanedTranscript: "I really want a dark mode.",
			Sentiment:         "Positive",
			Themes:            []string{"dark mode", " theming ", "Dark Mode", "accessibility", "ui"},
			Insight:           "Users want a dark theme.",
		},
		judgments: scoring.Judgments{Demand: ptr(8.0), Value: ptr(7.0), Implementation: ptr(6.0)},
	}
}

func (o *fakeOracles) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transcribes++
	if _, err := io.ReadAll(audio); err != nil {
		return "", err
	}
	return o.transcript, o.transcribeErr
}

func (o *fakeOracles) Analyze(_ context.Context, _ string) (oracle.Analysis, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.analysis, o.analyzeErr
}

func (o *fakeOracles) Match(_ context.Context, _ model.Feedback, candidates []model.Ticket) (oracle.Match, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.matches++
	o.candidates = candidates
	return o.match, o.matchErr
}

func (o *fakeOracles) Judge(_ context.Context, _ model.Ticket, _ []model.Feedback) (scoring.Judgments, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.judges++
	return o.judgments, o.judgeErr
}

func (o *fakeOracles) Generate(_ context.Context, feedback []model.Feedback, _ []model.Ticket) ([]oracle.Candidate, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.generates++
	o.shown = feedback
	return o.proposals, o.generateErr
}

func (o *fakeOracles) calls() (transcribes, matches, judges, generates int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcribes, o.matches, o.judges, o.generates
}

// recordingPublisher keeps published timeline events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.TimelineEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.TimelineEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type harness struct {
	ctx     context.Context
	tasks   <-chan queue.Delivery
	svc     *pipeline.Service
	store   *repository.GormStore
	blobs   *blob.FileStore
	queue   *queue.InMemoryQueue
	oracles *fakeOracles
	events  *recordingPublisher
}

func newHarness(t *testing.T, opts ...pipeline.Option) *harness {
	t.Helper()
	require.NoError(t, logger.Init(logger.WithWriter(io.Discard)))

	db, err := repository.Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })

	blobs, err := blob.NewFileStore(t.TempDir(), blob.WithMaxBytes(1<<20))
	require.NoError(t, err)

	h := &harness{
		store:   repository.NewGormStore(db),
		blobs:   blobs,
		queue:   queue.NewInMemoryQueue(queue.WithCapacity(100)),
		oracles: newFakeOracles(),
		events:  &recordingPublisher{},
	}
	var cancel context.CancelFunc
	h.ctx, cancel = context.WithCancel(context.Background())
	t.Cleanup(cancel)

	opts = append([]pipeline.Option{pipeline.WithClock(func() time.Time { return fixedNow })}, opts...)
	h.svc, err = pipeline.New(pipeline.Deps{
		Store:       h.store,
		Blobs:       h.blobs,
		Queue:       h.queue,
		Events:      h.events,
		Transcriber: h.oracles,
		Analyzer:    h.oracles,
		Matcher:     h.oracles,
		Judge:       h.oracles,
		Generator:   h.oracles,
	}, opts...)
	require.NoError(t, err)
	return h
}

// drain removes and returns every queued task. Tests that run a worker
// pool over the queue must not call it.
func (h *harness) drain() []queue.Task {
	if h.tasks == nil {
		h.tasks = h.queue.Dequeue(h.ctx)
	}
	var out []queue.Task
	for {
		select {
		case d := <-h.tasks:
			out = append(out, d.Task)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

// ingest submits a recording and returns the feedback id.
func (h *harness) ingest(t *testing.T, clientID string) string {
	t.Helper()
	id, err := h.svc.Ingest(context.Background(), pipeline.Submission{
		Audio:           bytes.NewBufferString("RIFF....fake-audio"),
		Filename:        "clip.webm",
		ClientID:        clientID,
		SessionID:       "sess-" + uuid.NewString()[:8],
		PageURL:         "https://example.com/settings",
		DurationSeconds: 9,
	})
	require.NoError(t, err)
	return id
}

// analyzed ingests and transcribes a recording, leaving the queue empty.
func (h *harness) analyzed(t *testing.T, clientID string) string {
	t.Helper()
	id := h.ingest(t, clientID)
	require.NoError(t, h.svc.Transcribe(context.Background(), id))
	h.drain()
	return id
}

// ticket stores a ticket directly.
func (h *harness) ticket(t *testing.T, clientID string, status model.TicketStatus) *model.Ticket {
	t.Helper()
	tk := &model.Ticket{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		Title:               "Dark mode",
		Description:         "Offer a dark theme",
		Status:              status,
		AISuggestedPriority: model.PriorityMedium,
	}
	require.NoError(t, h.store.CreateTicket(context.Background(), tk))
	return tk
}

func ptr[T any](v T) *T { return &v }
