// Package worker runs stage tasks pulled off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/voicebox/internal/adapters/mq/queue"
	"github.com/okian/voicebox/pkg/logger"
	"github.com/okian/voicebox/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// HandlerFunc handles one task. Returned errors are logged; the task is
// acknowledged either way.
type HandlerFunc func(ctx context.Context, t queue.Task) error

// Handlers routes tasks to handlers by kind.
type Handlers map[queue.Kind]HandlerFunc

// Queue defines how workers receive tasks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Delivery
}

// Worker processes tasks until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current task, or after the
	// remaining deliveries when the queue has been closed.
	Shutdown(ctx context.Context) error
}

// TaskWorker implements Worker by dispatching deliveries to Handlers.
type TaskWorker struct {
	queue    Queue
	handlers Handlers
	name     string

	shutdown  chan struct{}
	done      chan struct{}
	processed *atomic.Int64

	logger logger.Logger
}

// NewTaskWorker creates a new worker with configuration options.
func NewTaskWorker(q Queue, handlers Handlers, opts ...Option) *TaskWorker {
	w := &TaskWorker{
		queue:     q,
		handlers:  handlers,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		processed: new(atomic.Int64),
		logger:    logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *TaskWorker) Run(ctx context.Context) {
	defer close(w.done)

	deliveries := w.queue.Dequeue(ctx)
	shutdown := w.shutdown
	for {
		select {
		case <-ctx.Done():
			return
		case <-shutdown:
			// a closed queue still hands out what it buffered; stop once
			// deliveries closes so nothing enqueued before Close is lost.
			if !w.queueClosed() {
				return
			}
			shutdown = nil
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			if err := w.process(ctx, d.Task); err != nil {
				w.logger.Error(ctx, "error processing task",
					logger.String("task_id", d.ID),
					logger.String("kind", string(d.Kind)),
					logger.String("subject_id", d.SubjectID),
					logger.Error(err),
				)
			}
			if err := d.Ack(ctx); err != nil {
				w.logger.Warn(ctx, "failed to ack task", logger.String("task_id", d.ID), logger.Error(err))
			}
			w.processed.Add(1)
		}
	}
}

func (w *TaskWorker) queueClosed() bool {
	c, ok := w.queue.(interface{ IsClosed() bool })
	return ok && c.IsClosed()
}

// Shutdown stops the worker. When the queue is already closed the worker
// first handles every delivery still pending.
func (w *TaskWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs the handler registered for the task's kind.
func (w *TaskWorker) process(ctx context.Context, t queue.Task) error {
	kind := string(t.Kind)
	h, ok := w.handlers[t.Kind]
	if !ok {
		metrics.RecordWorkerError(kind)
		metrics.RecordErrorByComponent("worker", "unknown_kind")
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	ctx = logger.With(ctx,
		logger.String("task_kind", kind),
		logger.String("subject_id", t.SubjectID),
	)
	start := time.Now()
	err := h(ctx, t)
	metrics.RecordWorkerProcessingLatency(kind, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError(kind)
		metrics.RecordErrorByComponent("worker", kind+"_error")
		return fmt.Errorf("%s task %s: %w", kind, t.SubjectID, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers   []*TaskWorker
	queue     Queue
	processed *atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A count below one picks a default from
// the number of CPUs.
func NewPool(workerCount int, q Queue, handlers Handlers) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers:   make([]*TaskWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		logger:    logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewTaskWorker(q, handlers, WithName("worker-"+strconv.Itoa(i)))
		w.processed = pool.processed
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many tasks the pool has handled.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Shutdown closes the queue, lets workers finish the tasks it still buffers,
// then stops them, waiting at most until ctx or the pool timeout ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			timedOut++
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		return fmt.Errorf("%d workers did not stop: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
