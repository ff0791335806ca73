// Package zone classifies one zone as CLEAR, OCCUPIED or CROWDED from its
// node's distance and motion readings, with time-debounced transitions.
package zone

import (
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Config holds the occupancy thresholds.
type Config struct {
	ClearCM        float64       `koanf:"clear_cm"`
	CrowdedCM      float64       `koanf:"crowded_cm"`
	ClearConfirm   time.Duration `koanf:"clear_confirm"`
	CrowdedConfirm time.Duration `koanf:"crowded_confirm"`
	MotionBoost    float64       `koanf:"motion_boost"`
}

// DefaultConfig returns the stock thresholds. Clearing takes twice as long to
// confirm as crowding.
func DefaultConfig() Config {
	return Config{
		ClearCM:        200,
		CrowdedCM:      80,
		ClearConfirm:   2 * time.Second,
		CrowdedConfirm: time.Second,
		MotionBoost:    0.2,
	}
}

// Validate checks threshold order and durations.
func (c Config) Validate() error {
	switch {
	case c.CrowdedCM <= 0 || c.CrowdedCM >= c.ClearCM:
		return fmt.Errorf("%w: crowded threshold %v must be positive and below clear threshold %v", model.ErrInvalidConfig, c.CrowdedCM, c.ClearCM)
	case c.ClearCM > model.MaxDistanceCM:
		return fmt.Errorf("%w: clear threshold %v exceeds sensor range", model.ErrInvalidConfig, c.ClearCM)
	case c.CrowdedConfirm < 0:
		return fmt.Errorf("%w: crowded confirmation must not be negative", model.ErrInvalidConfig)
	case c.ClearConfirm < c.CrowdedConfirm:
		return fmt.Errorf("%w: clear confirmation %v must not be shorter than crowded confirmation %v", model.ErrInvalidConfig, c.ClearConfirm, c.CrowdedConfirm)
	case c.MotionBoost < 0 || c.MotionBoost > 1:
		return fmt.Errorf("%w: motion boost must lie in [0,1]", model.ErrInvalidConfig)
	}
	return nil
}

// Result is the committed view after one reading.
type Result struct {
	Zone           model.NodeID    `json:"zone"`
	State          model.ZoneState `json:"state"`
	InState        time.Duration   `json:"in_state"`
	ConfirmedHuman bool            `json:"confirmed_human"`
	Occupancy      float64         `json:"occupancy"`
}

// Info is a diagnostic view of the detector.
type Info struct {
	Zone            model.NodeID    `json:"zone"`
	State           model.ZoneState `json:"state"`
	Pending         model.ZoneState `json:"pending"`
	HasPending      bool            `json:"has_pending"`
	InState         time.Duration   `json:"in_state"`
	LastDistanceCM  float64         `json:"last_distance_cm"`
	Motion          bool            `json:"motion"`
	Occupancy       float64         `json:"occupancy"`
	PIRTriggers     int             `json:"pir_triggers"`
	ConfirmedHumans int             `json:"confirmed_humans"`
}

// Detector owns the state of a single zone.
type Detector struct {
	zone model.NodeID
	cfg  Config

	state      model.ZoneState
	stateSince time.Time
	now        time.Time

	pending      model.ZoneState
	pendingSince time.Time
	hasPending   bool

	lastDistance    float64
	motion          bool
	pirTriggers     int
	confirmedHumans int
	lastConfirmed   bool
}

// NewDetector validates cfg and returns a CLEAR detector for the zone.
func NewDetector(zone model.NodeID, cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("zone detector %s: %w", zone, err)
	}
	d := &Detector{zone: zone, cfg: cfg}
	d.Reset()
	return d, nil
}

// Reset returns the detector to CLEAR with zeroed counters.
func (d *Detector) Reset() {
	d.state = model.ZoneClear
	d.stateSince, d.now = time.Time{}, time.Time{}
	d.hasPending = false
	d.lastDistance = model.MaxDistanceCM
	d.motion = false
	d.pirTriggers, d.confirmedHumans = 0, 0
	d.lastConfirmed = false
}

// ProcessReading classifies one sample and applies the debounce.
func (d *Detector) ProcessReading(distance float64, motion bool, ts time.Time) Result {
	if d.stateSince.IsZero() {
		d.stateSince = ts
	}
	d.now = ts
	d.lastDistance = model.ClampDistance(distance)
	d.motion = motion
	if motion {
		d.pirTriggers++
	}

	d.confirm(d.target(), ts)

	confirmed := motion && d.state != model.ZoneClear
	if confirmed {
		d.confirmedHumans++
	}
	d.lastConfirmed = confirmed
	return d.Current(ts)
}

// Current returns the committed view as of at without consuming a reading.
func (d *Detector) Current(at time.Time) Result {
	in := time.Duration(0)
	if !d.stateSince.IsZero() {
		in = max(at.Sub(d.stateSince), 0)
	}
	return Result{
		Zone:           d.zone,
		State:          d.state,
		InState:        in,
		ConfirmedHuman: d.lastConfirmed,
		Occupancy:      d.OccupancyScore(),
	}
}

// target is the undebounced class. Close but motionless keeps the current
// state.
func (d *Detector) target() model.ZoneState {
	switch {
	case d.lastDistance < d.cfg.CrowdedCM:
		return model.ZoneCrowded
	case d.lastDistance < d.cfg.ClearCM && d.motion:
		return model.ZoneOccupied
	case d.lastDistance >= d.cfg.ClearCM:
		return model.ZoneClear
	}
	return d.state
}

func (d *Detector) required(s model.ZoneState) time.Duration {
	switch s {
	case model.ZoneClear:
		return d.cfg.ClearConfirm
	case model.ZoneCrowded:
		return d.cfg.CrowdedConfirm
	}
	return 0
}

func (d *Detector) confirm(target model.ZoneState, ts time.Time) {
	if target == d.state {
		d.hasPending = false
		return
	}
	if !d.hasPending || d.pending != target {
		d.pending, d.pendingSince, d.hasPending = target, ts, true
	}
	if ts.Sub(d.pendingSince) >= d.required(target) {
		d.state, d.stateSince = target, ts
		d.hasPending = false
	}
}

// OccupancyScore interpolates between the crowded and clear thresholds, plus
// the motion boost, capped at 1.
func (d *Detector) OccupancyScore() float64 {
	var base float64
	switch {
	case d.lastDistance >= d.cfg.ClearCM:
		base = 0
	case d.lastDistance <= d.cfg.CrowdedCM:
		base = 1
	default:
		base = (d.cfg.ClearCM - d.lastDistance) / (d.cfg.ClearCM - d.cfg.CrowdedCM)
	}
	if d.motion {
		base += d.cfg.MotionBoost
	}
	return model.Clamp01(base)
}

// State returns the committed state.
func (d *Detector) State() model.ZoneState { return d.state }

// Zone returns the zone identifier.
func (d *Detector) Zone() model.NodeID { return d.zone }

// Info returns the diagnostic view.
func (d *Detector) Info() Info {
	return Info{
		Zone:            d.zone,
		State:           d.state,
		Pending:         d.pending,
		HasPending:      d.hasPending,
		InState:         d.now.Sub(d.stateSince),
		LastDistanceCM:  d.lastDistance,
		Motion:          d.motion,
		Occupancy:       d.OccupancyScore(),
		PIRTriggers:     d.pirTriggers,
		ConfirmedHumans: d.confirmedHumans,
	}
}
