// Package dedupe tracks client request ids so a retried submission is
// acknowledged without being recorded twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper records seen request keys.
type Deduper interface {
	// SeenAndRecord reports whether key was already recorded and records it if not.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so a failed request can be retried with the same id.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key scopes a client request id to one session.
func Key(sessionID, requestID string) string {
	return sessionID + "/" + requestID
}

// inMemoryDeduper keeps keys in insertion order. When bounded, the oldest key
// is evicted first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewInMemoryDeduper creates an in-memory deduper. maxSize <= 0 disables eviction.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
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
