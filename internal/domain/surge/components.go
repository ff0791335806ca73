package surge

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Components are the five normalised risk signals of one tick.
type Components struct {
	FlowImbalance  float64 `json:"flow_imbalance"`
	EntryVelocity  float64 `json:"entry_velocity"`
	ClusterDensity float64 `json:"cluster_density"`
	ZoneBlockage   float64 `json:"zone_blockage"`
	SoundLevel     float64 `json:"sound_level"`
}

// Map returns the components keyed by name.
func (c Components) Map() map[string]float64 {
	return map[string]float64{
		"flow_imbalance":  c.FlowImbalance,
		"entry_velocity":  c.EntryVelocity,
		"cluster_density": c.ClusterDensity,
		"zone_blockage":   c.ZoneBlockage,
		"sound_level":     c.SoundLevel,
	}
}

// bounded clamps every component to [0,1]; a NaN component counts as 0 so it
// cannot void the others.
func (c Components) bounded() Components {
	return Components{
		FlowImbalance:  model.Clamp01(c.FlowImbalance),
		EntryVelocity:  model.Clamp01(c.EntryVelocity),
		ClusterDensity: model.Clamp01(c.ClusterDensity),
		ZoneBlockage:   model.Clamp01(c.ZoneBlockage),
		SoundLevel:     model.Clamp01(c.SoundLevel),
	}
}

// pressure is how far a distance has closed in from the empty-hall reference.
func (c Config) pressure(d float64) float64 {
	return math.Max(0, (c.ReferenceCM-d)/c.ReferenceCM)
}

// flowImbalance is entry pressure minus damped exit flow. It needs both
// readings.
func (c Config) flowImbalance(entry, exit float64, ok bool) float64 {
	if !ok {
		return 0
	}
	in := c.pressure(entry)
	if in <= c.PressureFloor {
		return 0
	}
	return model.Clamp01(in - c.ExitDamping*c.pressure(exit))
}

// entryVelocity grows as the mean distance across nodes shrinks.
func (c Config) entryVelocity(distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	return model.Clamp01((c.ReferenceCM - stat.Mean(distances, nil)) / c.VelocitySpanCM)
}

// proximity is a step function of the closest reading.
func proximity(distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}
	closest := floats.Min(distances)
	switch {
	case closest < 50:
		return 1.0
	case closest < 100:
		return 0.7
	case closest < 150:
		return 0.4
	}
	return math.Max(0, (200-closest)/200)
}

// blockage is the share of configured zones closer than the blocked distance.
func (c Config) blockage(distances []float64, zones int) float64 {
	if zones == 0 {
		return 0
	}
	blocked := 0
	for _, d := range distances {
		if d < c.BlockedCM {
			blocked++
		}
	}
	return float64(blocked) / float64(zones)
}

// sound maps dB onto [0,1]: quiet..loud covers 0..0.5, loud..scream covers
// 0.5..1, anything louder is 1. NaN reads as silence.
func (c Config) sound(db float64, ok bool) float64 {
	switch {
	case !ok || math.IsNaN(db) || db <= c.QuietDB:
		return 0
	case db >= c.ScreamDB:
		return 1
	case db <= c.LoudDB:
		return 0.5 * (db - c.QuietDB) / (c.LoudDB - c.QuietDB)
	}
	return 0.5 + 0.5*(db-c.LoudDB)/(c.ScreamDB-c.LoudDB)
}

// stateFor maps a score onto the highest threshold it reaches.
func (c Config) stateFor(risk float64) model.SystemState {
	s := model.StateClear
	for i, th := range c.Thresholds {
		if risk >= th {
			s = model.SystemState(i + 1)
		}
	}
	return s
}
