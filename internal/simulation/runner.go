package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

// Defaults for the simulator binary.
const (
	DefaultTarget   = "127.0.0.1:4444"
	DefaultRate     = 100 * time.Millisecond
	DefaultSeed     = 42
	DefaultScenario = ScenarioSurge
)

// Config holds the settings of one run.
type Config struct {
	Target   string        // host:port of the ingestion listener
	Scenario string        // scenario name
	Rate     time.Duration // pause between rounds
	Rounds   int           // 0 runs the whole scenario
	Seed     int64         // random seed
	Nodes    []Node        // defaults to DefaultNodes
	Verbose  bool          // log every datagram
}

// Stats summarizes a run.
type Stats struct {
	RunID     string
	Scenario  string
	Rounds    int
	Sent      int
	Failed    int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Runner sends scenario rounds to a writer, one datagram per Write.
type Runner struct {
	cfg      Config
	scenario Scenario
	gen      *Generator
	w        io.Writer
	now      func() time.Time
	logger   logger.Logger
	runID    string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces time.Now for datagram timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunID pins the run id instead of a random one.
func WithRunID(id string) RunnerOption {
	return func(r *Runner) {
		if id != "" {
			r.runID = id
		}
	}
}

// NewRunner validates cfg and prepares a run writing to w.
func NewRunner(cfg Config, w io.Writer, opts ...RunnerOption) (*Runner, error) {
	sc, err := Lookup(cfg.Scenario)
	if err != nil {
		return nil, err
	}
	if cfg.Nodes == nil {
		cfg.Nodes = DefaultNodes
	}
	if len(cfg.Nodes) == 0 {
		return nil, ErrNoNodes
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = sc.Rounds()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	r := &Runner{
		cfg:      cfg,
		scenario: sc,
		gen:      NewGenerator(cfg.Seed, cfg.Nodes),
		w:        w,
		now:      time.Now,
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("simulator")
	}
	return r, nil
}

// RunID identifies the run in logs.
func (r *Runner) RunID() string { return r.runID }

// Run sends every round, pausing Rate between rounds, until the scenario ends
// or ctx is done. Write failures are counted, not fatal.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: r.runID, Scenario: r.scenario.Name, StartTime: r.now()}
	r.logger.Info(ctx, "simulation started",
		logger.String("run_id", r.runID),
		logger.String("scenario", r.scenario.Name),
		logger.Int("rounds", r.cfg.Rounds),
		logger.Duration("rate", r.cfg.Rate),
		logger.Int64("seed", r.cfg.Seed))

	ticker := time.NewTicker(r.cfg.Rate)
	defer ticker.Stop()

	var phase string
	var err error
	for i := 0; i < r.cfg.Rounds; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case <-ticker.C:
			}
			if err != nil {
				break
			}
		}
		p := r.scenario.ProfileAt(i)
		if p.Name != phase {
			phase = p.Name
			r.logger.Info(ctx, "phase started",
				logger.String("run_id", r.runID),
				logger.String("phase", phase),
				logger.Int("round", i))
		}
		for _, d := range r.gen.Next(p, r.now()) {
			if sendErr := r.send(ctx, d); sendErr != nil {
				stats.Failed++
				r.logger.Warn(ctx, "send failed", logger.String("node", d.Node), logger.Error(sendErr))
				continue
			}
			stats.Sent++
		}
		stats.Rounds++
	}

	stats.EndTime = r.now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	r.logger.Info(ctx, "simulation finished",
		logger.String("run_id", r.runID),
		logger.Int("rounds", stats.Rounds),
		logger.Int("sent", stats.Sent),
		logger.Int("failed", stats.Failed),
		logger.Duration("duration", stats.Duration))
	return stats, err
}

func (r *Runner) send(ctx context.Context, d Datagram) error {
	body, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if _, err := r.w.Write(body); err != nil {
		return err
	}
	if r.cfg.Verbose {
		r.logger.Debug(ctx, "datagram sent", logger.String("body", string(body)))
	}
	return nil
}

// Run dials cfg.Target over UDP and runs the scenario against it.
func Run(ctx context.Context, cfg Config, opts ...RunnerOption) (Stats, error) {
	if cfg.Target == "" {
		return Stats{}, ErrNoTarget
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", cfg.Target)
	if err != nil {
		return Stats{}, fmt.Errorf("dial %s: %w", cfg.Target, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Get().Error(context.Background(), "failed to close socket", logger.Error(cerr))
		}
	}()
	r, err := NewRunner(cfg, conn, opts...)
	if err != nil {
		return Stats{}, err
	}
	return r.Run(ctx)
}
