package model

import (
	"fmt"
	"strings"
	"time"
)

// SystemState is the ordered five-level severity of the whole site.
type SystemState int

// System states in rank order.
const (
	StateClear SystemState = iota
	StateNormal
	StateElevated
	StateCritical
	StateSurge
)

var systemStateNames = [...]string{"CLEAR", "NORMAL", "ELEVATED", "CRITICAL", "SURGE"}

var systemStateColors = [...]string{"#22c55e", "#3b82f6", "#eab308", "#f97316", "#ef4444"}

// Valid reports whether s is one of the five states.
func (s SystemState) Valid() bool { return s >= StateClear && s <= StateSurge }

func (s SystemState) String() string {
	if !s.Valid() {
		return fmt.Sprintf("SystemState(%d)", int(s))
	}
	return systemStateNames[s]
}

// Color returns the dashboard color for the state.
func (s SystemState) Color() string {
	if !s.Valid() {
		return "#6b7280"
	}
	return systemStateColors[s]
}

// MarshalText renders the state name.
func (s SystemState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *SystemState) UnmarshalText(b []byte) error {
	v, err := ParseSystemState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSystemState parses a case-insensitive state name.
func ParseSystemState(name string) (SystemState, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, v := range systemStateNames {
		if v == n {
			return SystemState(i), nil
		}
	}
	return StateClear, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// ZoneState is the debounced occupancy class of one zone. ZoneOffline marks a
// zone whose node has no fresh reading.
type ZoneState int

// Zone states.
const (
	ZoneClear ZoneState = iota
	ZoneOccupied
	ZoneCrowded
	ZoneOffline
)

var zoneStateNames = [...]string{"CLEAR", "OCCUPIED", "CROWDED", "OFFLINE"}

func (z ZoneState) String() string {
	if z < ZoneClear || z > ZoneOffline {
		return fmt.Sprintf("ZoneState(%d)", int(z))
	}
	return zoneStateNames[z]
}

// MarshalText renders the zone state name.
func (z ZoneState) MarshalText() ([]byte, error) { return []byte(z.String()), nil }

// RiskTier classifies a cluster by device count.
type RiskTier int

// Cluster risk tiers.
const (
	TierLow RiskTier = iota
	TierMedium
	TierHigh
)

func (t RiskTier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	}
	return fmt.Sprintf("RiskTier(%d)", int(t))
}

// MarshalText renders the tier name.
func (t RiskTier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Position is one synthetic device location. Density is a 0..1 hint of how
// crowded its zone is.
type Position struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Density float64 `json:"density"`
}

// Cluster is a connected group of dense grid cells.
type Cluster struct {
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Count int      `json:"count"`
	Cells int      `json:"cells"`
	Tier  RiskTier `json:"tier"`
}

// PassageEvent is one confirmed transit through the door. Seq is the running
// passage count after this event.
type PassageEvent struct {
	Seq int       `json:"seq"`
	At  time.Time `json:"at"`
}
