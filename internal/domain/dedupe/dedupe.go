// Package dedupe tracks idempotency keys of accepted mutating requests.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Deduper records idempotency keys so a retried request is not applied twice.
type Deduper interface {
	// SeenAndRecord atomically checks whether key is held and claims it if not.
	// Returns true if the key was already held.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases a key whose request failed, so the client may retry it.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Key scopes a client-supplied idempotency key to the caller, so two callers
// may reuse the same value independently.
func Key(caller, method, path, raw string) string {
	return caller + "\x00" + method + " " + path + "\x00" + raw
}

type entry struct {
	key string
	at  time.Time
}

// inMemoryDeduper keeps keys in insertion order. The oldest key is evicted
// when the bound is reached, and keys older than ttl are treated as unseen.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int // <= 0 means unbounded
	ttl     time.Duration
	now     func() time.Time
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 10000,
		ttl:     24 * time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)

	if _, ok := d.seen[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.remove(d.order.Front())
	}
	d.seen[key] = d.order.PushBack(entry{key: key, at: now})
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.seen[key]; ok {
		d.remove(el)
	}
}

// expire drops keys older than ttl. Must hold d.mu.
func (d *inMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(entry).at) < d.ttl {
			return
		}
		d.remove(el)
	}
}

// remove deletes el. Must hold d.mu.
func (d *inMemoryDeduper) remove(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.seen, el.Value.(entry).key)
	d.order.Remove(el)
	d.size.Add(-1)
}

// Size returns the number of keys currently held.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
