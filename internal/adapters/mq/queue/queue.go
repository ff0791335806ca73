// Package queue buffers parsed readings between the listeners and the
// workers that store them.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds r or returns ErrFull or ErrClosed without blocking.
	Enqueue(ctx context.Context, r model.Reading) error

	// Dequeue returns the channel readings arrive on. It is closed by Close
	// once drained.
	Dequeue() <-chan model.Reading

	Len() int
	Close() error
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	readings chan model.Reading
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.readings = make(chan model.Reading, q.capacity)
	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds r to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, r model.Reading) error {
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.RecordQueueEnqueueError()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		return err
	}

	select {
	case q.readings <- r:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.readings))
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan model.Reading {
	return q.readings
}

// Len returns the number of waiting readings.
func (q *InMemoryQueue) Len() int {
	n := len(q.readings)
	metrics.UpdateQueueSize(n)
	return n
}

// Cap returns the capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close stops new enqueues. Readings already queued are still delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.readings)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
