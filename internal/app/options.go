package service

import (
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/alert"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTickInterval sets the period of the risk computation.
func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithNodeTimeout sets how long a node may stay silent before it drops out of
// the tick snapshot.
func WithNodeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.nodeTimeout = d
		}
	}
}

// WithQueueSize bounds the ingestion queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of store workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize sets how many datagram keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithSurgeConfig replaces the engine configuration.
func WithSurgeConfig(cfg surge.Config) Option {
	return func(s *Service) { s.surgeCfg = cfg }
}

// WithEngineOptions passes options through to surge.New.
func WithEngineOptions(opts ...surge.Option) Option {
	return func(s *Service) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithAlertConfig replaces the alert gating configuration.
func WithAlertConfig(cfg alert.Config) Option {
	return func(s *Service) { s.alertCfg = cfg }
}

// WithAlertHandler registers an extra alert handler under name.
func WithAlertHandler(name string, h alert.Handler) Option {
	return func(s *Service) {
		if h != nil {
			s.alertOpts = append(s.alertOpts, alert.WithHandler(name, h))
		}
	}
}

// WithAlertIDs replaces the alert ID generator.
func WithAlertIDs(f func() string) Option {
	return func(s *Service) { s.alertOpts = append(s.alertOpts, alert.WithIDGenerator(f)) }
}

// WithDoor wires the door node: it buzzes on severe alerts, mirrors the
// system state and learns its address from the exit node's datagrams.
func WithDoor(d Door) Option {
	return func(s *Service) { s.door = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
