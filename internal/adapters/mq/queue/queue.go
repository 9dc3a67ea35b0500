// Package queue carries stage tasks between the pipeline stages.
//
// Two backends exist: an in-memory bounded channel for single-process runs
// and a Redis list pair that redelivers tasks whose consumer died before
// acknowledging them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/voicebox/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultBufferSize    = 10000
)

// Kind names the stage a task triggers.
type Kind string

// Task kinds.
const (
	KindTranscribe Kind = "transcribe"
	KindScore      Kind = "score"
)

// Task is one unit of stage work. SubjectID is a feedback id for transcribe
// tasks and a ticket id for score tasks.
type Task struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	SubjectID  string    `json:"subject_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewTask builds a task with a fresh id.
func NewTask(kind Kind, subjectID string) Task {
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		SubjectID:  subjectID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Delivery is a dequeued task. Consumers call Ack once the task is handled,
// whatever the outcome; an unacknowledged delivery may be redelivered.
type Delivery struct {
	Task
	ack func(ctx context.Context) error
}

// NewDelivery pairs a task with its acknowledgement callback.
func NewDelivery(t Task, ack func(ctx context.Context) error) Delivery {
	return Delivery{Task: t, ack: ack}
}

// Ack acknowledges the delivery.
func (d Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Queue provides enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. It fails with ErrFull or ErrClosed instead of blocking.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue returns a channel that receives deliveries as they become
	// available. The channel is closed when the queue is closed or ctx ends.
	Dequeue(ctx context.Context) <-chan Delivery

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	// Close stops the queue. After closing no new tasks are accepted.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel. Acks are no-ops:
// tasks do not survive the process.
type InMemoryQueue struct {
	tasks      chan Task
	capacity   int
	bufferSize int
	mu         sync.RWMutex
	closed     bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultQueueCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize < q.capacity {
		q.bufferSize = q.capacity
	}
	q.tasks = make(chan Task, q.bufferSize)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)

	return q
}

// Enqueue adds a task to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	if len(q.tasks) >= q.capacity {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return ErrFull
	}

	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue(string(t.Kind))
		metrics.UpdateQueueSize(len(q.tasks))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return ctx.Err()
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Dequeue returns a channel that receives tasks as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Delivery {
	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-q.tasks:
				if !ok {
					return
				}
				select {
				case out <- Delivery{Task: t}:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.tasks))
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue. Tasks still buffered are drained
// by running consumers before their channels close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
