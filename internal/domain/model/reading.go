// Package model contains the plain values passed between the detectors, the
// engine and the adapters around them.
package model

import (
	"math"
	"time"
)

// MaxDistanceCM is the ultrasonic range ceiling. A reading with no echo
// reports this value.
const MaxDistanceCM = 400.0

// Sound is an optional sound level. Only microphone nodes set Valid.
type Sound struct {
	DB    float64 `json:"db"`
	Valid bool    `json:"valid"`
}

// Reading is one node's instantaneous sample.
type Reading struct {
	Node       NodeID  `json:"node"`
	DistanceCM float64 `json:"distance_cm"`
	Motion     bool    `json:"motion"`
	WiFiCount  int     `json:"wifi_count"`
	Sound      Sound   `json:"sound"`
	// RSSI in dBm of the strongest tracked device; zero when not reported.
	RSSI      float64   `json:"rssi,omitempty"`
	Uptime    int64     `json:"uptime,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the batch of readings a single tick is computed from. Nodes
// without a fresh reading are absent from Readings.
type Snapshot struct {
	At       time.Time
	Readings map[NodeID]Reading
}

// Reading returns the node's reading when present.
func (s Snapshot) Reading(id NodeID) (Reading, bool) {
	r, ok := s.Readings[id]
	return r, ok
}

// ClampDistance maps any float onto [0, MaxDistanceCM]. NaN and +Inf read as
// no echo.
func ClampDistance(d float64) float64 {
	switch {
	case math.IsNaN(d), math.IsInf(d, 1):
		return MaxDistanceCM
	case d < 0:
		return 0
	case d > MaxDistanceCM:
		return MaxDistanceCM
	}
	return d
}

// Clamp01 bounds a score to the unit interval. NaN becomes zero.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}
