// Package dedupe tracks keys of work that is already queued so that repeated
// triggers for the same subject coalesce into a single task.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records in-flight keys.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is in flight and records it
	// if not. Returns true when the key was already recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a key once its work has been handled or could not be
	// queued, so the next trigger is accepted again.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper keeps keys in insertion order. In bounded mode the oldest
// key is evicted when full, which at worst lets a duplicate task through.
type inMemoryDeduper struct {
	mu      sync.Mutex
	order   *list.List
	seen    map[string]*list.Element
	maxSize int // <= 0 means unbounded
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.seen = make(map[string]*list.Element)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(string))
	}
	d.seen[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
