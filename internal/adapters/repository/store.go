// Package repository keeps the newest reading of every node and hands the
// pipeline a consistent snapshot per tick.
package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

const (
	defaultNodeTimeout           = 5 * time.Second
	defaultMetricsUpdateInterval = 5 * time.Second
)

// NodeStatus is the liveness view of one node.
type NodeStatus struct {
	Node     model.NodeID   `json:"node"`
	Online   bool           `json:"online"`
	LastSeen time.Time      `json:"last_seen"`
	Age      time.Duration  `json:"age"`
	Received int64          `json:"received"`
	Reading  *model.Reading `json:"reading,omitempty"`
}

// Store provides read/write access to the latest readings.
type Store interface {
	// Put records r when it is newer than the stored reading for its node.
	// It reports whether r replaced the stored reading.
	Put(ctx context.Context, r model.Reading) (bool, error)

	// Snapshot copies every reading younger than the node timeout.
	Snapshot(ctx context.Context, now time.Time) model.Snapshot

	// Nodes returns the liveness of every configured node in site order.
	Nodes(ctx context.Context, now time.Time) []NodeStatus
}

type entry struct {
	reading  model.Reading
	received int64
	ok       bool
}

// MemoryStore guards the latest reading per node with one RWMutex.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []model.NodeID
	latest  map[model.NodeID]*entry
	timeout time.Duration
	now     func() time.Time

	metricsUpdateInterval time.Duration
}

// NewMemoryStore accepts readings only for nodes.
func NewMemoryStore(nodes []model.NodeID, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		order:                 slices.Clone(nodes),
		latest:                make(map[model.NodeID]*entry, len(nodes)),
		timeout:               defaultNodeTimeout,
		now:                   time.Now,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, id := range nodes {
		s.latest[id] = &entry{}
	}
	return s
}

// Timeout returns the node timeout.
func (s *MemoryStore) Timeout() time.Duration { return s.timeout }

// Put stores r unless an equal or newer reading is already held.
func (s *MemoryStore) Put(_ context.Context, r model.Reading) (bool, error) {
	if r.Timestamp.IsZero() {
		return false, ErrNoTimestamp
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.latest[r.Node]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownNode, r.Node)
	}
	e.received++
	if e.ok && !r.Timestamp.After(e.reading.Timestamp) {
		return false, nil
	}
	e.reading, e.ok = r, true
	return true, nil
}

// Snapshot returns every reading whose age at now is within the timeout.
func (s *MemoryStore) Snapshot(_ context.Context, now time.Time) model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := model.Snapshot{At: now, Readings: make(map[model.NodeID]model.Reading, len(s.latest))}
	for id, e := range s.latest {
		if e.ok && now.Sub(e.reading.Timestamp) <= s.timeout {
			snap.Readings[id] = e.reading
		}
	}
	return snap
}

// Nodes returns the liveness of every node.
func (s *MemoryStore) Nodes(_ context.Context, now time.Time) []NodeStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]NodeStatus, 0, len(s.order))
	for _, id := range s.order {
		e := s.latest[id]
		st := NodeStatus{Node: id, Received: e.received}
		if e.ok {
			r := e.reading
			st.Reading = &r
			st.LastSeen = r.Timestamp
			st.Age = max(now.Sub(r.Timestamp), 0)
			st.Online = st.Age <= s.timeout
		}
		out = append(out, st)
	}
	return out
}

// Run refreshes the node liveness gauges until ctx is done.
func (s *MemoryStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateMetrics(ctx)
		}
	}
}

func (s *MemoryStore) updateMetrics(ctx context.Context) {
	for _, st := range s.Nodes(ctx, s.now()) {
		metrics.UpdateNodeOnline(string(st.Node), st.Online)
		if st.Reading != nil {
			metrics.UpdateNodeAge(string(st.Node), st.Age.Seconds())
		}
	}
}
