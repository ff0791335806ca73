// Package dedupe remembers recently seen message keys so that retransmitted
// node datagrams are stored once.
package dedupe

import (
	"context"
	"sync"
)

const defaultMaxSize = 4096

// Deduper records seen message keys.
type Deduper interface {
	// SeenAndRecord reports whether id was already seen and records it if not.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so a message that failed downstream can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// ringDeduper keeps the newest maxSize keys. The oldest key is evicted first.
type ringDeduper struct {
	mu      sync.Mutex
	maxSize int
	slots   []string
	next    int
	seen    map[string]int
}

// NewInMemoryDeduper returns a bounded deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ringDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.slots = make([]string, d.maxSize)
	d.seen = make(map[string]int, d.maxSize)
	return d
}

func (d *ringDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if old := d.slots[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.slots[d.next] = id
	d.seen[id] = d.next
	d.next = (d.next + 1) % d.maxSize
	return false
}

func (d *ringDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if slot, ok := d.seen[id]; ok {
		d.slots[slot] = ""
		delete(d.seen, id)
	}
}

func (d *ringDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
