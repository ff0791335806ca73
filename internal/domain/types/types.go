// Package types contains the JSON views served by the HTTP API. Durations are
// rendered as seconds and enums as names.
package types

import (
	"math"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
)

// Zone is one zone as shown to operators.
type Zone struct {
	Zone           model.NodeID    `json:"zone"`
	Role           model.Role      `json:"role"`
	State          model.ZoneState `json:"state"`
	Online         bool            `json:"online"`
	Stale          bool            `json:"stale"`
	AgeSeconds     float64         `json:"age_seconds"`
	DistanceCM     float64         `json:"distance_cm"`
	Motion         bool            `json:"motion"`
	Occupancy      float64         `json:"occupancy"`
	InStateSeconds float64         `json:"in_state_seconds"`
	ConfirmedHuman bool            `json:"confirmed_human"`
}

// Passage summarises the door.
type Passage struct {
	Count     int     `json:"count"`
	PerMinute float64 `json:"per_minute"`
	Velocity  float64 `json:"velocity"`
	DoorState string  `json:"door_state"`
}

// State is the latest tick as shown on the dashboard.
type State struct {
	At             time.Time          `json:"at"`
	RiskScore      float64            `json:"risk_score"`
	RiskPercent    int                `json:"risk_percent"`
	State          model.SystemState  `json:"state"`
	Target         model.SystemState  `json:"target"`
	Pending        *model.SystemState `json:"pending,omitempty"`
	InStateSeconds float64            `json:"in_state_seconds"`
	Color          string             `json:"color"`
	Recommendation string             `json:"recommendation"`
	Trend          surge.Trend        `json:"trend"`
	Components     surge.Components   `json:"components"`
	Zones          []Zone             `json:"zones"`
	Passage        Passage            `json:"passage"`
	DeviceCount    int                `json:"device_count"`
	ClusterCount   int                `json:"cluster_count"`
}

// Clusters is the crowd-cluster view.
type Clusters struct {
	Clusters []model.Cluster `json:"clusters"`
	Count    int             `json:"count"`
	Heatmap  [][]float64     `json:"heatmap"`
}

// Alerts is a page of alert history, newest first.
type Alerts struct {
	Alerts []model.Alert `json:"alerts"`
	Count  int           `json:"count"`
}

// Node is the liveness view of one sensing node.
type Node struct {
	Node       model.NodeID   `json:"node"`
	Role       model.Role     `json:"role"`
	Online     bool           `json:"online"`
	LastSeen   *time.Time     `json:"last_seen,omitempty"`
	AgeSeconds float64        `json:"age_seconds"`
	Received   int64          `json:"received"`
	Reading    *model.Reading `json:"reading,omitempty"`
}

// Nodes lists every configured node.
type Nodes struct {
	Nodes  []Node `json:"nodes"`
	Online int    `json:"online"`
	Total  int    `json:"total"`
}

// Ingested acknowledges a posted reading.
type Ingested struct {
	Accepted  bool         `json:"accepted"`
	Duplicate bool         `json:"duplicate,omitempty"`
	Node      model.NodeID `json:"node"`
}

// Seconds renders d with millisecond precision.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// FromResult converts an engine result into the dashboard view.
func FromResult(r surge.Result) State {
	s := State{
		At:             r.At,
		RiskScore:      r.RiskScore,
		RiskPercent:    int(math.Round(r.RiskScore * 100)),
		State:          r.State,
		Target:         r.Target,
		InStateSeconds: Seconds(r.InState),
		Color:          r.Color,
		Recommendation: r.Recommendation,
		Trend:          r.Trend,
		Components:     r.Components,
		Zones:          ZonesFromResult(r),
		Passage: Passage{
			Count:     r.PassageCount,
			PerMinute: r.PassageRate,
			Velocity:  r.FlowVelocity,
			DoorState: r.DoorState.String(),
		},
		DeviceCount:  r.DeviceCount,
		ClusterCount: r.ClusterCount,
	}
	if r.HasPending {
		p := r.Pending
		s.Pending = &p
	}
	return s
}

// ZonesFromResult converts the per-zone statuses of r.
func ZonesFromResult(r surge.Result) []Zone {
	out := make([]Zone, 0, len(r.Zones))
	for _, z := range r.Zones {
		out = append(out, Zone{
			Zone:           z.Zone,
			Role:           z.Role,
			State:          z.State,
			Online:         z.Online,
			Stale:          z.Stale,
			AgeSeconds:     Seconds(z.Age),
			DistanceCM:     z.DistanceCM,
			Motion:         z.Motion,
			Occupancy:      z.Occupancy,
			InStateSeconds: Seconds(z.InState),
			ConfirmedHuman: z.ConfirmedHuman,
		})
	}
	return out
}
