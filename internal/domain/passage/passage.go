// Package passage counts transits through a doorway from a single distance
// stream.
//
// The detector walks BASELINE -> APPROACH -> PASSAGE -> COOLDOWN -> BASELINE.
// A passage is only counted when the distance stays below the passage
// threshold for MinPassage, so jitter never counts. Every timer is derived
// from reading timestamps; nothing reads the wall clock.
package passage

import (
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const velocitySampleEvery = time.Second

// State is the doorway state machine position.
type State int

// Doorway states.
const (
	StateBaseline State = iota
	StateApproach
	StatePassage
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateBaseline:
		return "BASELINE"
	case StateApproach:
		return "APPROACH"
	case StatePassage:
		return "PASSAGE"
	case StateCooldown:
		return "COOLDOWN"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Event is what a reading caused, if anything.
type Event int

// Events emitted by ProcessReading.
const (
	EventNone Event = iota
	EventApproach
	EventPassage
	EventClear
)

func (e Event) String() string {
	switch e {
	case EventApproach:
		return "APPROACH"
	case EventPassage:
		return "PASSAGE"
	case EventClear:
		return "CLEAR"
	}
	return ""
}

// MarshalText renders the event name.
func (e Event) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// Result is the outcome of one reading.
type Result struct {
	Event    Event               `json:"event,omitempty"`
	Passage  *model.PassageEvent `json:"passage,omitempty"`
	Count    int                 `json:"count"`
	State    State               `json:"state"`
	FlowRate float64             `json:"flow_rate"`
}

// Stats summarises the detector since construction or the last Reset.
type Stats struct {
	State           State         `json:"state"`
	Count           int           `json:"count"`
	Approaches      int           `json:"approaches"`
	FalseApproaches int           `json:"false_approaches"`
	ConversionRate  float64       `json:"conversion_rate"`
	MinDistanceCM   float64       `json:"min_distance_cm"`
	FlowRate        float64       `json:"flow_rate"`
	Velocity        float64       `json:"velocity"`
	InState         time.Duration `json:"in_state"`
}

type rateSample struct {
	at   time.Time
	rate float64
}

// Detector is the doorway state machine. It is not safe for concurrent use.
type Detector struct {
	cfg Config

	state      State
	stateSince time.Time
	now        time.Time

	closeTiming bool
	closeSince  time.Time
	farTiming   bool
	farSince    time.Time

	count           int
	approaches      int
	falseApproaches int
	minSeen         float64

	passages []time.Time
	samples  []rateSample
}

// NewDetector validates cfg and returns a detector in BASELINE.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("passage detector: %w", err)
	}
	d := &Detector{cfg: cfg}
	d.Reset()
	return d, nil
}

// Reset forgets all counters and history.
func (d *Detector) Reset() {
	d.state = StateBaseline
	d.stateSince = time.Time{}
	d.now = time.Time{}
	d.closeTiming, d.farTiming = false, false
	d.count, d.approaches, d.falseApproaches = 0, 0, 0
	d.minSeen = model.MaxDistanceCM
	d.passages = make([]time.Time, 0, d.cfg.HistorySize)
	d.samples = make([]rateSample, 0, d.cfg.VelocitySamples)
}

// ProcessReading advances the state machine with one distance sample.
func (d *Detector) ProcessReading(distance float64, ts time.Time) Result {
	if d.stateSince.IsZero() {
		d.stateSince = ts
	}
	d.now = ts
	dist := model.ClampDistance(distance)
	if dist < d.minSeen {
		d.minSeen = dist
	}

	var res Result
	switch d.state {
	case StateBaseline:
		if dist < d.cfg.PresenceCM {
			d.approaches++
			d.transition(StateApproach, ts)
			res.Event = EventApproach
		}

	case StateApproach:
		if dist < d.cfg.PassageCM {
			d.farTiming = false
			if !d.closeTiming {
				d.closeTiming, d.closeSince = true, ts
			}
			if ts.Sub(d.closeSince) >= d.cfg.MinPassage {
				ev := d.recordPassage(ts)
				d.transition(StatePassage, ts)
				res.Event, res.Passage = EventPassage, &ev
			}
			break
		}
		d.closeTiming = false
		if d.departed(dist, ts) {
			d.falseApproaches++
			d.transition(StateBaseline, ts)
			res.Event = EventClear
		}

	case StatePassage:
		if d.departed(dist, ts) {
			d.transition(StateCooldown, ts)
		}

	case StateCooldown:
		if ts.Sub(d.stateSince) >= d.cfg.Cooldown {
			d.transition(StateBaseline, ts)
			res.Event = EventClear
		}
	}

	d.sample(ts)
	res.Count = d.count
	res.State = d.state
	res.FlowRate = d.FlowRate()
	return res
}

// departed tracks how long the distance has stayed beyond the return
// threshold and reports when that lasted ReturnDuration.
func (d *Detector) departed(dist float64, ts time.Time) bool {
	if dist <= d.cfg.ReturnCM {
		d.farTiming = false
		return false
	}
	if !d.farTiming {
		d.farTiming, d.farSince = true, ts
	}
	return ts.Sub(d.farSince) >= d.cfg.ReturnDuration
}

func (d *Detector) transition(to State, ts time.Time) {
	d.state = to
	d.stateSince = ts
	d.closeTiming = false
	d.farTiming = false
}

func (d *Detector) recordPassage(ts time.Time) model.PassageEvent {
	d.count++
	if len(d.passages) == d.cfg.HistorySize {
		copy(d.passages, d.passages[1:])
		d.passages = d.passages[:len(d.passages)-1]
	}
	d.passages = append(d.passages, ts)
	return model.PassageEvent{Seq: d.count, At: ts}
}

func (d *Detector) sample(ts time.Time) {
	if n := len(d.samples); n > 0 && ts.Sub(d.samples[n-1].at) < velocitySampleEvery {
		return
	}
	if len(d.samples) == d.cfg.VelocitySamples {
		copy(d.samples, d.samples[1:])
		d.samples = d.samples[:len(d.samples)-1]
	}
	d.samples = append(d.samples, rateSample{at: ts, rate: d.FlowRateOver(d.cfg.VelocityWindow)})
}

// FlowRate returns passages per minute over the configured flow window.
func (d *Detector) FlowRate() float64 { return d.FlowRateOver(d.cfg.FlowWindow) }

// FlowRateOver returns passages per minute over a trailing window ending at
// the latest reading.
func (d *Detector) FlowRateOver(window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	cutoff := d.now.Add(-window)
	n := 0
	for i := len(d.passages) - 1; i >= 0; i-- {
		if !d.passages[i].After(cutoff) {
			break
		}
		n++
	}
	return float64(n) * (time.Minute.Seconds() / window.Seconds())
}

// Velocity is the rate of change of the short-window flow rate, in passages
// per minute per minute.
func (d *Detector) Velocity() float64 {
	if len(d.samples) < 2 {
		return 0
	}
	first, last := d.samples[0], d.samples[len(d.samples)-1]
	dt := last.at.Sub(first.at).Seconds()
	if dt < 1 {
		return 0
	}
	return (last.rate - first.rate) / dt * time.Minute.Seconds()
}

// Count returns the number of confirmed passages.
func (d *Detector) Count() int { return d.count }

// State returns the current state.
func (d *Detector) State() State { return d.state }

// Stats returns counters and rates.
func (d *Detector) Stats() Stats {
	s := Stats{
		State:           d.state,
		Count:           d.count,
		Approaches:      d.approaches,
		FalseApproaches: d.falseApproaches,
		MinDistanceCM:   d.minSeen,
		FlowRate:        d.FlowRate(),
		Velocity:        d.Velocity(),
		InState:         d.now.Sub(d.stateSince),
	}
	if d.approaches > 0 {
		s.ConversionRate = float64(d.count) / float64(d.approaches)
	}
	return s
}
