// Package worker moves queued readings into the latest-reading store.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

const defaultWorkerCount = 2

// Sink stores a reading.
type Sink interface {
	Put(ctx context.Context, r model.Reading) (bool, error)
}

// Source yields readings until it is closed.
type Source interface {
	Dequeue() <-chan model.Reading
}

// Pool runs a fixed number of workers draining one Source.
type Pool struct {
	source Source
	sink   Sink
	size   int
	name   string
	logger logger.Logger

	wg        sync.WaitGroup
	stored    atomic.Int64
	stale     atomic.Int64
	failed    atomic.Int64
	startOnce sync.Once
}

// Stats counts readings handled by the pool.
type Stats struct {
	Workers int   `json:"workers"`
	Stored  int64 `json:"stored"`
	Stale   int64 `json:"stale"`
	Failed  int64 `json:"failed"`
}

// NewPool creates a pool of n workers. n < 1 uses the default.
func NewPool(n int, source Source, sink Sink, opts ...Option) *Pool {
	if n < 1 {
		n = defaultWorkerCount
	}
	p := &Pool{source: source, sink: sink, size: n, name: "worker-pool"}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named(p.name)
	}
	return p
}

// Start launches the workers. They exit when the source channel is closed
// and drained, or when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		metrics.UpdateWorkerCount(p.size)
		for i := range p.size {
			p.wg.Add(1)
			go p.run(ctx, i)
		}
	})
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	readings := p.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := p.process(ctx, r); err != nil {
				p.logger.Error(ctx, "storing reading failed",
					logger.Int("worker", id),
					logger.String("node", string(r.Node)),
					logger.Error(err))
			}
		}
	}
}

func (p *Pool) process(ctx context.Context, r model.Reading) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1e3)
	}()

	stored, err := p.sink.Put(ctx, r)
	if err != nil {
		p.failed.Add(1)
		metrics.RecordWorkerError()
		return fmt.Errorf("put %s: %w", r.Node, err)
	}
	if !stored {
		p.stale.Add(1)
		return nil
	}
	p.stored.Add(1)
	metrics.RecordReadingAccepted(string(r.Node))
	return nil
}

// Wait blocks until every worker has exited or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("worker shutdown: %w", ctx.Err())
	}
}

// Shutdown closes the source when it can be closed and waits for the
// workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "closing queue failed", logger.Error(err))
		}
	}
	return p.Wait(ctx)
}

// Stats returns the counters.
func (p *Pool) Stats() Stats {
	return Stats{Workers: p.size, Stored: p.stored.Load(), Stale: p.stale.Load(), Failed: p.failed.Load()}
}
