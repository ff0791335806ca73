package simulation

import (
	"math"
	"math/rand"
	"time"
)

const (
	minDistance   = 10
	maxDistance   = 400
	distanceNoise = 5.0
	slowAlpha     = 0.1
	baseRSSI      = -80.0
)

// Node is one simulated sensing point.
type Node struct {
	ID         string
	Microphone bool
}

// DefaultNodes matches the three-node deployment; only the exit node has a
// microphone.
var DefaultNodes = []Node{{ID: "A"}, {ID: "B"}, {ID: "C", Microphone: true}}

// Datagram is the JSON a node sends to the ingestion port.
type Datagram struct {
	Node      string   `json:"node"`
	Dist      float64  `json:"dist"`
	PIR       int      `json:"pir"`
	WiFiCount int      `json:"wifi_count"`
	RSSI      float64  `json:"rssi,omitempty"`
	DB        *float64 `json:"db,omitempty"`
	Uptime    int64    `json:"uptime"`
	Timestamp int64    `json:"timestamp"`
}

type nodeState struct {
	dist, wifi, sound float64
	motionHold        int
}

// Generator produces readings that drift smoothly towards the active
// profile. It is not safe for concurrent use.
type Generator struct {
	rnd   *rand.Rand
	nodes []Node
	state []nodeState
	start time.Time
}

// NewGenerator seeds a generator for nodes.
func NewGenerator(seed int64, nodes []Node) *Generator {
	g := &Generator{
		rnd:   rand.New(rand.NewSource(seed)), //nolint:gosec // reproducible demo data
		nodes: append([]Node(nil), nodes...),
		state: make([]nodeState, len(nodes)),
	}
	for i := range g.state {
		g.state[i] = nodeState{dist: 200, wifi: 5, sound: 40}
	}
	return g
}

// Next returns one datagram per node for a round sent at at.
func (g *Generator) Next(p Profile, at time.Time) []Datagram {
	if g.start.IsZero() {
		g.start = at
	}
	uptime := at.Sub(g.start).Milliseconds()
	out := make([]Datagram, 0, len(g.nodes))
	for i, n := range g.nodes {
		s := &g.state[i]

		s.dist += (g.uniform(p.DistMin, p.DistMax) - s.dist) * p.Alpha
		dist := math.Round(s.dist + g.rnd.NormFloat64()*distanceNoise)
		dist = math.Max(minDistance, math.Min(maxDistance, dist))

		pir := 0
		switch {
		case s.motionHold > 0:
			s.motionHold--
			pir = 1
		case g.rnd.Float64() < p.MotionProb:
			pir = 1
			s.motionHold = 3 + g.rnd.Intn(8)
		}

		s.wifi += (g.uniform(p.WiFiMin, p.WiFiMax) - s.wifi) * slowAlpha

		d := Datagram{
			Node:      n.ID,
			Dist:      dist,
			PIR:       pir,
			WiFiCount: int(math.Round(s.wifi)),
			RSSI:      math.Round(baseRSSI + s.wifi*2),
			Uptime:    uptime,
			Timestamp: at.UnixMilli(),
		}
		if n.Microphone {
			s.sound += (g.uniform(p.SoundMin, p.SoundMax) - s.sound) * slowAlpha
			db := math.Round(s.sound)
			d.DB = &db
		}
		out = append(out, d)
	}
	return out
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rnd.Float64()*(hi-lo)
}
