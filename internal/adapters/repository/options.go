package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithNodeTimeout sets how old a node's newest reading may be before the node
// is left out of snapshots.
func WithNodeTimeout(timeout time.Duration) Option {
	return func(s *MemoryStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithClock replaces time.Now for the liveness gauges.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetricsUpdateInterval sets the interval of the node liveness gauges.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}
