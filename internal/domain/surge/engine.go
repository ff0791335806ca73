// Package surge fuses the doorway, zone, device and cluster signals into one
// risk score and a hysteresis-gated system state.
//
// An Engine owns exactly one detector of each kind for the site it was built
// with. Process is synchronous and derives every timer from the snapshot
// time, so feeding the same snapshots to two engines yields the same results.
package surge

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/cluster"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/device"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/passage"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/zone"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

// Trend is the direction of the risk score.
type Trend string

// Risk trends.
const (
	TrendUnknown Trend = "UNKNOWN"
	TrendRising  Trend = "RISING"
	TrendFalling Trend = "FALLING"
	TrendStable  Trend = "STABLE"
)

var recommendations = map[model.SystemState]string{
	model.StateClear:    "No action needed. Area is clear.",
	model.StateNormal:   "Normal flow. Continue routine monitoring.",
	model.StateElevated: "Crowd building up. Deploy staff to the entry and slow admissions.",
	model.StateCritical: "Dangerous density. Stop entry, open every exit and announce dispersal.",
	model.StateSurge:    "Crowd surge in progress. Evacuate now and alert emergency services.",
}

// Recommendation returns the operator action for a state.
func Recommendation(s model.SystemState) string {
	return recommendations[s]
}

// ZoneStatus is the per-node view of one tick.
type ZoneStatus struct {
	Zone           model.NodeID    `json:"zone"`
	Role           model.Role      `json:"role"`
	State          model.ZoneState `json:"state"`
	Online         bool            `json:"online"`
	Stale          bool            `json:"stale"`
	Age            time.Duration   `json:"age"`
	DistanceCM     float64         `json:"distance_cm"`
	Motion         bool            `json:"motion"`
	Occupancy      float64         `json:"occupancy"`
	InState        time.Duration   `json:"in_state"`
	ConfirmedHuman bool            `json:"confirmed_human"`
}

// Result is the engine output for one tick.
type Result struct {
	At             time.Time         `json:"at"`
	RiskScore      float64           `json:"risk_score"`
	Components     Components        `json:"components"`
	Target         model.SystemState `json:"target"`
	State          model.SystemState `json:"state"`
	Previous       model.SystemState `json:"previous"`
	Changed        bool              `json:"changed"`
	Pending        model.SystemState `json:"pending"`
	HasPending     bool              `json:"has_pending"`
	InState        time.Duration     `json:"in_state"`
	Zones          []ZoneStatus      `json:"zones"`
	PassageCount   int               `json:"passage_count"`
	PassageRate    float64           `json:"passage_rate"`
	FlowVelocity   float64           `json:"flow_velocity"`
	DoorState      passage.State     `json:"door_state"`
	DeviceCount    int               `json:"device_count"`
	Clusters       []model.Cluster   `json:"clusters"`
	ClusterCount   int               `json:"cluster_count"`
	Trend          Trend             `json:"trend"`
	Recommendation string            `json:"recommendation"`
	Color          string            `json:"color"`
}

// Transition is one committed state change.
type Transition struct {
	At        time.Time         `json:"at"`
	From      model.SystemState `json:"from"`
	To        model.SystemState `json:"to"`
	RiskScore float64           `json:"risk_score"`
}

// Escalation reports whether the transition raised the severity.
func (t Transition) Escalation() bool { return t.To > t.From }

// RiskSample is one entry of the risk history.
type RiskSample struct {
	At    time.Time `json:"at"`
	Score float64   `json:"score"`
}

// Stats summarises the engine.
type Stats struct {
	State       model.SystemState `json:"state"`
	Ticks       int               `json:"ticks"`
	RiskScore   float64           `json:"risk_score"`
	PeakRisk    float64           `json:"peak_risk"`
	AverageRisk float64           `json:"average_risk"`
	Transitions int               `json:"transitions"`
	InState     time.Duration     `json:"in_state"`
	Trend       Trend             `json:"trend"`
	Passage     passage.Stats     `json:"passage"`
	Devices     device.Stats      `json:"devices"`
	Clusters    cluster.Stats     `json:"clusters"`
	Zones       []zone.Info       `json:"zones"`
}

type settings struct {
	passage passage.Config
	zone    zone.Config
	device  device.Config
	cluster cluster.Config
	rng     *rand.Rand
	logger  logger.Logger
}

// Option configures an Engine.
type Option func(*settings)

// WithPassageConfig overrides the doorway detector parameters.
func WithPassageConfig(c passage.Config) Option { return func(s *settings) { s.passage = c } }

// WithZoneConfig overrides the zone detector parameters.
func WithZoneConfig(c zone.Config) Option { return func(s *settings) { s.zone = c } }

// WithDeviceConfig overrides the device tracker parameters.
func WithDeviceConfig(c device.Config) Option { return func(s *settings) { s.device = c } }

// WithClusterConfig overrides the cluster detector parameters.
func WithClusterConfig(c cluster.Config) Option { return func(s *settings) { s.cluster = c } }

// WithRand sets the source for synthetic device positions.
func WithRand(r *rand.Rand) Option { return func(s *settings) { s.rng = r } }

// WithLogger sets the logger used for state transitions.
func WithLogger(l logger.Logger) Option { return func(s *settings) { s.logger = l } }

// Engine is the fusion core. It is not safe for concurrent use.
type Engine struct {
	site   model.Site
	cfg    Config
	logger logger.Logger

	entry, exit model.NodeSpec

	door     *passage.Detector
	zones    map[model.NodeID]*zone.Detector
	// observed is the newest reading time fed to each node's detectors.
	observed map[model.NodeID]time.Time
	devices  *device.Tracker
	clusters *cluster.Detector

	state        model.SystemState
	stateSince   time.Time
	pending      model.SystemState
	pendingSince time.Time
	hasPending   bool
	now          time.Time

	risks       []RiskSample
	transitions []Transition
	peak        float64
	ticks       int
	last        Result
}

// New validates site and cfg and builds one detector of each kind.
func New(site model.Site, cfg Config, opts ...Option) (*Engine, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("surge engine: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("surge engine: %w", err)
	}
	s := settings{
		passage: passage.DefaultConfig(),
		zone:    zone.DefaultConfig(),
		device:  device.DefaultConfig(),
		cluster: cluster.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("surge")
	}

	door, err := passage.NewDetector(s.passage)
	if err != nil {
		return nil, err
	}
	var trackerOpts []device.Option
	if s.rng != nil {
		trackerOpts = append(trackerOpts, device.WithRand(s.rng))
	}
	tracker, err := device.NewTracker(site, s.device, trackerOpts...)
	if err != nil {
		return nil, err
	}
	clusters, err := cluster.NewDetector(site.Room, s.cluster)
	if err != nil {
		return nil, err
	}
	zones := make(map[model.NodeID]*zone.Detector, len(site.Nodes))
	for _, n := range site.Nodes {
		z, err := zone.NewDetector(n.ID, s.zone)
		if err != nil {
			return nil, err
		}
		zones[n.ID] = z
	}

	entry, _ := site.NodeByRole(model.RoleEntry)
	exit, _ := site.NodeByRole(model.RoleExit)
	e := &Engine{
		site:     site,
		cfg:      cfg,
		logger:   s.logger,
		entry:    entry,
		exit:     exit,
		door:     door,
		zones:    zones,
		observed: make(map[model.NodeID]time.Time, len(site.Nodes)),
		devices:  tracker,
		clusters: clusters,
	}
	e.last = Result{Trend: TrendUnknown, Recommendation: Recommendation(model.StateClear), Color: model.StateClear.Color()}
	return e, nil
}

// Process runs one tick over a consistent snapshot. Nodes missing from the
// snapshot are reported OFFLINE and contribute nothing to the score.
func (e *Engine) Process(snap model.Snapshot) Result {
	at := snap.At
	if e.stateSince.IsZero() {
		e.stateSince = at
	}
	e.now = at
	e.ticks++

	var (
		zones     = make([]ZoneStatus, 0, len(e.site.Nodes))
		present   = make(map[model.NodeID]float64, len(e.site.Nodes))
		distances = make([]float64, 0, len(e.site.Nodes))
		loudest   float64
		heard     bool
	)
	for _, n := range e.site.Nodes {
		r, ok := snap.Reading(n.ID)
		if !ok {
			zones = append(zones, ZoneStatus{Zone: n.ID, Role: n.Role, State: model.ZoneOffline, DistanceCM: model.MaxDistanceCM})
			continue
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = at
		}
		dist := model.ClampDistance(r.DistanceCM)
		e.observe(n.ID, r, ts)
		zr := e.zones[n.ID].Current(at)

		age := max(at.Sub(ts), 0)
		zones = append(zones, ZoneStatus{
			Zone:           n.ID,
			Role:           n.Role,
			State:          zr.State,
			Online:         true,
			Stale:          age > e.cfg.StaleAfter,
			Age:            age,
			DistanceCM:     dist,
			Motion:         r.Motion,
			Occupancy:      zr.Occupancy,
			InState:        zr.InState,
			ConfirmedHuman: zr.ConfirmedHuman,
		})
		present[n.ID] = dist
		distances = append(distances, dist)
		if n.Microphone && r.Sound.Valid && !math.IsNaN(r.Sound.DB) && (!heard || r.Sound.DB > loudest) {
			loudest, heard = r.Sound.DB, true
		}
	}

	e.devices.Advance(at)
	e.clusters.Update(e.devices.EstimatedPositions())

	entryDist, entryOK := present[e.entry.ID]
	exitDist, exitOK := present[e.exit.ID]
	comp := Components{
		FlowImbalance:  e.cfg.flowImbalance(entryDist, exitDist, entryOK && exitOK),
		EntryVelocity:  e.cfg.entryVelocity(distances),
		ClusterDensity: max(e.clusters.RiskScore(), proximity(distances)),
		ZoneBlockage:   e.cfg.blockage(distances, len(e.site.Nodes)),
		SoundLevel:     e.cfg.sound(loudest, heard),
	}
	risk := e.cfg.Weights.Apply(comp)
	target := e.cfg.stateFor(risk)

	prev := e.state
	e.step(target, risk, at)
	e.record(risk, at)

	clusters := e.clusters.Clusters()
	e.last = Result{
		At:             at,
		RiskScore:      risk,
		Components:     comp,
		Target:         target,
		State:          e.state,
		Previous:       prev,
		Changed:        e.state != prev,
		Pending:        e.pending,
		HasPending:     e.hasPending,
		InState:        at.Sub(e.stateSince),
		Zones:          zones,
		PassageCount:   e.door.Count(),
		PassageRate:    e.door.FlowRate(),
		FlowVelocity:   e.door.Velocity(),
		DoorState:      e.door.State(),
		DeviceCount:    e.devices.DeviceCount(),
		Clusters:       clusters,
		ClusterCount:   len(clusters),
		Trend:          e.Trend(),
		Recommendation: Recommendation(e.state),
		Color:          e.state.Color(),
	}
	return e.last
}

// Observe feeds one reading to its node's detectors as it arrives, so the
// doorway sees every sample and not only the newest one per tick. Readings
// not newer than the last one fed for the node are ignored. It reports
// whether the reading was used.
func (e *Engine) Observe(r model.Reading) bool {
	if _, ok := e.zones[r.Node]; !ok || r.Timestamp.IsZero() {
		return false
	}
	return e.observe(r.Node, r, r.Timestamp)
}

func (e *Engine) observe(id model.NodeID, r model.Reading, ts time.Time) bool {
	if last, ok := e.observed[id]; ok && !ts.After(last) {
		return false
	}
	e.observed[id] = ts
	dist := model.ClampDistance(r.DistanceCM)
	e.zones[id].ProcessReading(dist, r.Motion, ts)
	_ = e.devices.UpdateScan(id, r.WiFiCount, ts)
	if id == e.exit.ID {
		e.door.ProcessReading(dist, ts)
	}
	return true
}

// step moves the committed state at most one rank toward target once the
// next rank has been pending for the direction's delay.
func (e *Engine) step(target model.SystemState, risk float64, at time.Time) {
	if target == e.state {
		e.hasPending = false
		return
	}
	next, delay := e.state+1, e.cfg.EscalateDelay
	if target < e.state {
		next, delay = e.state-1, e.cfg.DeescalateDelay
	}
	if !e.hasPending || e.pending != next {
		e.pending, e.pendingSince, e.hasPending = next, at, true
	}
	if at.Sub(e.pendingSince) < delay {
		return
	}

	t := Transition{At: at, From: e.state, To: next, RiskScore: risk}
	e.state, e.stateSince, e.hasPending = next, at, false
	e.transitions = append(e.transitions, t)
	if over := len(e.transitions) - e.cfg.StateHistory; over > 0 {
		e.transitions = append(e.transitions[:0:0], e.transitions[over:]...)
	}
	e.logger.Info(context.Background(), "system state changed",
		logger.String("from", t.From.String()),
		logger.String("to", t.To.String()),
		logger.Float64("risk", risk),
		logger.String("target", target.String()))

	if target != e.state {
		e.pending, e.pendingSince, e.hasPending = e.state+1, at, true
		if target < e.state {
			e.pending = e.state - 1
		}
	}
}

func (e *Engine) record(risk float64, at time.Time) {
	e.risks = append(e.risks, RiskSample{At: at, Score: risk})
	if over := len(e.risks) - e.cfg.RiskHistory; over > 0 {
		e.risks = append(e.risks[:0:0], e.risks[over:]...)
	}
	e.peak = max(e.peak, risk)
}

// State returns the committed system state.
func (e *Engine) State() model.SystemState { return e.state }

// Last returns the most recent result.
func (e *Engine) Last() Result { return e.last }

// ShouldAlert reports whether the committed state warrants operator attention.
func (e *Engine) ShouldAlert() bool { return e.state >= model.StateElevated }

// Site returns the site the engine was built for.
func (e *Engine) Site() model.Site { return e.site }

// RiskHistory returns up to n most recent samples, oldest first. n <= 0
// returns all of them.
func (e *Engine) RiskHistory(n int) []RiskSample {
	from := 0
	if n > 0 && n < len(e.risks) {
		from = len(e.risks) - n
	}
	return append([]RiskSample(nil), e.risks[from:]...)
}

// Transitions returns the committed state changes, oldest first.
func (e *Engine) Transitions() []Transition {
	return append([]Transition(nil), e.transitions...)
}

// Trend compares the mean of the latest window of scores with the window
// before it.
func (e *Engine) Trend() Trend {
	w := e.cfg.TrendWindow
	if len(e.risks) < 2*w {
		return TrendUnknown
	}
	tail := e.risks[len(e.risks)-2*w:]
	older := make([]float64, w)
	recent := make([]float64, w)
	for i := range w {
		older[i] = tail[i].Score
		recent[i] = tail[w+i].Score
	}
	diff := stat.Mean(recent, nil) - stat.Mean(older, nil)
	switch {
	case diff > e.cfg.TrendThreshold:
		return TrendRising
	case diff < -e.cfg.TrendThreshold:
		return TrendFalling
	}
	return TrendStable
}

// Heatmap returns the normalised device density grid.
func (e *Engine) Heatmap(grid int) [][]float64 { return e.devices.Heatmap(grid) }

// ZoneDevices returns the synthetic device distribution per zone.
func (e *Engine) ZoneDevices() []device.ZoneCount { return e.devices.ZoneCounts() }

// Stats returns a summary including each detector's own statistics.
func (e *Engine) Stats() Stats {
	s := Stats{
		State:       e.state,
		Ticks:       e.ticks,
		RiskScore:   e.last.RiskScore,
		PeakRisk:    e.peak,
		Transitions: len(e.transitions),
		InState:     e.now.Sub(e.stateSince),
		Trend:       e.Trend(),
		Passage:     e.door.Stats(),
		Devices:     e.devices.Stats(),
		Clusters:    e.clusters.Stats(),
	}
	if len(e.risks) > 0 {
		scores := make([]float64, len(e.risks))
		for i, r := range e.risks {
			scores[i] = r.Score
		}
		s.AverageRisk = stat.Mean(scores, nil)
	}
	for _, n := range e.site.Nodes {
		s.Zones = append(s.Zones, e.zones[n.ID].Info())
	}
	return s
}
