// Package alert turns committed system state changes into leveled alerts.
//
// Every candidate alert passes a per-level cooldown and a rolling rate limit.
// Alerts failing either gate are counted as suppressed. Accepted alerts go to
// a bounded history and then to every registered handler; a handler that
// fails or panics never stops the others.
package alert

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// Suppression reasons.
const (
	ReasonCooldown  = "cooldown"
	ReasonRateLimit = "rate_limit"
)

var escalationMessages = map[model.SystemState]string{
	model.StateNormal:   "Crowd activity detected. Monitoring continues.",
	model.StateElevated: "Crowd density rising. Prepare crowd control at the entry.",
	model.StateCritical: "CRITICAL crowd density. Stop entry and open all exits.",
	model.StateSurge:    "CROWD SURGE DETECTED. Evacuate the area immediately.",
}

// Handler receives accepted alerts.
type Handler interface {
	Handle(ctx context.Context, a model.Alert) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, a model.Alert) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, a model.Alert) error { return f(ctx, a) }

// Stats counts alerts since construction.
type Stats struct {
	Total               int            `json:"total"`
	Suppressed          int            `json:"suppressed"`
	SuppressedCooldown  int            `json:"suppressed_cooldown"`
	SuppressedRateLimit int            `json:"suppressed_rate_limit"`
	Filtered            int            `json:"filtered"`
	HandlerErrors       int            `json:"handler_errors"`
	ByLevel             map[string]int `json:"by_level"`
	Handlers            []string       `json:"handlers"`
}

type namedHandler struct {
	name string
	h    Handler
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithHandler registers a handler at construction.
func WithHandler(name string, h Handler) Option {
	return func(m *Manager) { m.handlers = append(m.handlers, namedHandler{name: name, h: h}) }
}

// WithIDGenerator replaces the random alert ids, mostly for tests.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) {
		if f != nil {
			m.newID = f
		}
	}
}

// Manager gates and dispatches alerts. It is safe for concurrent use.
type Manager struct {
	logger logger.Logger
	newID  func() string

	mu        sync.Mutex
	cfg       Config
	cooldowns [model.LevelEmergency + 1]time.Duration
	minLevel  model.AlertLevel
	handlers  []namedHandler
	last      map[model.AlertLevel]time.Time
	recent    []time.Time
	history   []model.Alert
	stats     Stats
}

// NewManager validates cfg.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("alert manager: %w", err)
	}
	minLevel, _ := model.ParseAlertLevel(cfg.MinLevel)
	m := &Manager{
		newID:     uuid.NewString,
		cfg:       cfg,
		cooldowns: cfg.cooldowns(),
		minLevel:  minLevel,
		last:      make(map[model.AlertLevel]time.Time),
		stats:     Stats{ByLevel: make(map[string]int)},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("alert")
	}
	seen := make(map[string]bool, len(m.handlers))
	for _, nh := range m.handlers {
		if seen[nh.name] {
			return nil, fmt.Errorf("alert manager: %w: %s", ErrDuplicateHandler, nh.name)
		}
		seen[nh.name] = true
	}
	return m, nil
}

// Register adds a named handler.
func (m *Manager) Register(name string, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, nh := range m.handlers {
		if nh.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateHandler, name)
		}
	}
	m.handlers = append(m.handlers, namedHandler{name: name, h: h})
	return nil
}

// Unregister removes a handler by name and reports whether it existed.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := slices.IndexFunc(m.handlers, func(nh namedHandler) bool { return nh.name == name })
	if i < 0 {
		return false
	}
	m.handlers = slices.Delete(m.handlers, i, i+1)
	return true
}

// Process builds the alert for a committed transition from prev to cur.
// It returns false when there was no change or the alert was gated.
func (m *Manager) Process(ctx context.Context, prev, cur model.SystemState, risk float64, at time.Time) (model.Alert, bool) {
	if prev == cur {
		return model.Alert{}, false
	}
	a := model.Alert{
		At:         at,
		Level:      model.LevelForState(cur),
		State:      cur,
		Previous:   prev,
		Escalation: cur > prev,
		RiskScore:  risk,
	}
	if a.Escalation {
		a.Message = escalationMessages[cur]
	} else {
		a.Level = model.LevelInfo
		a.Message = fmt.Sprintf("Risk easing: %s to %s.", prev, cur)
	}
	a.Broadcast = a.Level >= model.LevelCritical
	return m.emit(ctx, a)
}

// Trigger raises a manual alert, e.g. from an operator or a zone check.
func (m *Manager) Trigger(ctx context.Context, level model.AlertLevel, message, zone string, at time.Time) (model.Alert, bool) {
	return m.emit(ctx, model.Alert{
		At:        at,
		Level:     level,
		Message:   message,
		Zone:      zone,
		Broadcast: level >= model.LevelCritical,
	})
}

func (m *Manager) emit(ctx context.Context, a model.Alert) (model.Alert, bool) {
	m.mu.Lock()
	if a.Level < m.minLevel {
		m.stats.Filtered++
		m.mu.Unlock()
		return model.Alert{}, false
	}
	if reason := m.gate(a.Level, a.At); reason != "" {
		m.stats.Suppressed++
		if reason == ReasonCooldown {
			m.stats.SuppressedCooldown++
		} else {
			m.stats.SuppressedRateLimit++
		}
		m.mu.Unlock()
		metrics.RecordAlertSuppressed(a.Level.String(), reason)
		m.logger.Debug(ctx, "alert suppressed",
			logger.String("level", a.Level.String()),
			logger.String("reason", reason),
			logger.String("message", a.Message))
		return model.Alert{}, false
	}

	a.ID = m.newID()
	m.last[a.Level] = a.At
	m.recent = append(m.recent, a.At)
	m.history = append(m.history, a)
	if over := len(m.history) - m.cfg.HistorySize; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	m.stats.Total++
	m.stats.ByLevel[a.Level.String()]++
	handlers := slices.Clone(m.handlers)
	m.mu.Unlock()

	metrics.RecordAlertEmitted(a.Level.String())
	for _, nh := range handlers {
		if err := m.dispatch(ctx, nh, a); err != nil {
			m.mu.Lock()
			m.stats.HandlerErrors++
			m.mu.Unlock()
			metrics.RecordAlertHandlerError(nh.name)
			m.logger.Error(ctx, "alert handler failed",
				logger.String("handler", nh.name),
				logger.String("alert_id", a.ID),
				logger.Error(err))
		}
	}
	return a, true
}

// gate returns the suppression reason or "" when the alert may pass. The
// caller holds mu.
func (m *Manager) gate(level model.AlertLevel, at time.Time) string {
	if last, ok := m.last[level]; ok && at.Sub(last) < m.cooldowns[level] {
		return ReasonCooldown
	}
	cutoff := at.Add(-m.cfg.RateWindow)
	keep := m.recent[:0]
	for _, t := range m.recent {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	m.recent = keep
	if len(m.recent) >= m.cfg.RateLimit {
		return ReasonRateLimit
	}
	return ""
}

func (m *Manager) dispatch(ctx context.Context, nh namedHandler, a model.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrHandlerPanic, nh.name, r)
		}
	}()
	return nh.h.Handle(ctx, a)
}

// History returns up to limit alerts, newest first. limit <= 0 returns all.
func (m *Manager) History(limit int) []model.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.Alert, 0, n)
	for i := len(m.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.history[i])
	}
	return out
}

// Stats returns a copy of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.ByLevel = make(map[string]int, len(m.stats.ByLevel))
	for k, v := range m.stats.ByLevel {
		s.ByLevel[k] = v
	}
	for _, nh := range m.handlers {
		s.Handlers = append(s.Handlers, nh.name)
	}
	return s
}
