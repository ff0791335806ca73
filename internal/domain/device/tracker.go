// Package device fuses per-node Wi-Fi counts into a people estimate and
// synthesises device positions for clustering and the heatmap.
//
// Positions are an approximation: only aggregate counts are known, so devices
// are spread over the zones by each node's share and placed uniformly at
// random inside each zone. The random source is injected so runs repeat.
package device

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const (
	defaultSeed     = 42
	defaultHeatGrid = 10
	trendWindow     = 5
	centerZone      = "center"
)

// Trend is the direction of the device count.
type Trend string

// Count trends.
const (
	TrendUnknown    Trend = "UNKNOWN"
	TrendIncreasing Trend = "INCREASING"
	TrendDecreasing Trend = "DECREASING"
	TrendStable     Trend = "STABLE"
)

// ZoneCount is the number of devices placed in one zone.
type ZoneCount struct {
	Zone  string     `json:"zone"`
	Area  model.Rect `json:"area"`
	Count int        `json:"count"`
}

// Stats summarises the tracker.
type Stats struct {
	DeviceCount int                  `json:"device_count"`
	ActiveNodes int                  `json:"active_nodes"`
	RawCounts   map[model.NodeID]int `json:"raw_counts"`
	Peak        int                  `json:"peak"`
	Updates     int                  `json:"updates"`
	Trend       Trend                `json:"trend"`
}

type scan struct {
	count int
	at    time.Time
}

type sample struct {
	at    time.Time
	count int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRand sets the random source used for position synthesis.
func WithRand(r *rand.Rand) Option {
	return func(t *Tracker) {
		if r != nil {
			t.rng = r
		}
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) Option {
	return func(t *Tracker) {
		t.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // positions are a visual approximation
	}
}

// Tracker owns the latest scan of every node. It is not safe for concurrent use.
type Tracker struct {
	site model.Site
	cfg  Config
	rng  *rand.Rand

	scans     map[model.NodeID]scan
	now       time.Time
	positions []model.Position
	history   []sample
	peak      int
	updates   int
}

// NewTracker validates the site and cfg.
func NewTracker(site model.Site, cfg Config, opts ...Option) (*Tracker, error) {
	if err := site.Validate(); err != nil {
		return nil, fmt.Errorf("device tracker: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("device tracker: %w", err)
	}
	t := &Tracker{
		site:  site,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(defaultSeed)), //nolint:gosec // positions are a visual approximation
		scans: make(map[model.NodeID]scan, len(site.Nodes)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// UpdateScan records a node's Wi-Fi count and rebuilds the positions.
func (t *Tracker) UpdateScan(node model.NodeID, wifiCount int, ts time.Time) error {
	if _, ok := t.site.Node(node); !ok {
		return fmt.Errorf("device tracker: %w: %q", model.ErrUnknownNode, node)
	}
	if wifiCount < 0 {
		wifiCount = 0
	}
	t.scans[node] = scan{count: wifiCount, at: ts}
	t.updates++
	if ts.After(t.now) {
		t.now = ts
	}
	t.regenerate()
	return nil
}

// Advance moves the tracker clock, expiring silent nodes, and closes one scan
// round in the count history.
func (t *Tracker) Advance(now time.Time) {
	if now.After(t.now) {
		t.now = now
	}
	t.regenerate()
	count := t.DeviceCount()
	if count > t.peak {
		t.peak = count
	}
	if len(t.history) == t.cfg.HistorySize {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, sample{at: t.now, count: count})
}

// active returns the counts of nodes heard within the timeout, in site order.
func (t *Tracker) active() ([]model.NodeSpec, []float64) {
	nodes := make([]model.NodeSpec, 0, len(t.site.Nodes))
	counts := make([]float64, 0, len(t.site.Nodes))
	for _, n := range t.site.Nodes {
		s, ok := t.scans[n.ID]
		if !ok || t.now.Sub(s.at) >= t.cfg.Timeout {
			continue
		}
		nodes = append(nodes, n)
		counts = append(counts, float64(s.count))
	}
	return nodes, counts
}

// DeviceCount estimates the number of people from the active nodes.
func (t *Tracker) DeviceCount() int {
	_, counts := t.active()
	if len(counts) == 0 {
		return 0
	}
	top := floats.Max(counts)
	others := floats.Sum(counts) - top
	return int((top + t.cfg.OverlapFactor*others) * t.cfg.AdoptionMultiplier)
}

// RawCounts returns the last count of every active node.
func (t *Tracker) RawCounts() map[model.NodeID]int {
	nodes, counts := t.active()
	out := make(map[model.NodeID]int, len(nodes))
	for i, n := range nodes {
		out[n.ID] = int(counts[i])
	}
	return out
}

// ZoneCounts spreads the estimate over the node zones by each node's share of
// the raw total. The remainder lands in the center zone.
func (t *Tracker) ZoneCounts() []ZoneCount {
	nodes, counts := t.active()
	out := make([]ZoneCount, 0, len(nodes)+1)
	total := t.DeviceCount()
	raw := floats.Sum(counts)
	assigned := 0
	for i, n := range nodes {
		c := 0
		if raw > 0 {
			c = int(float64(total) * (counts[i] / raw) * t.cfg.NodeZoneShare)
		}
		assigned += c
		out = append(out, ZoneCount{Zone: string(n.ID), Area: n.Zone, Count: c})
	}
	out = append(out, ZoneCount{Zone: centerZone, Area: t.site.Center, Count: total - assigned})
	return out
}

func (t *Tracker) regenerate() {
	t.positions = t.positions[:0]
	for _, z := range t.ZoneCounts() {
		if z.Count <= 0 {
			continue
		}
		density := math.Min(1, float64(z.Count)/z.Area.Area()/t.cfg.DensityNorm)
		for i := 0; i < z.Count; i++ {
			t.positions = append(t.positions, model.Position{
				X:       z.Area.MinX + t.rng.Float64()*z.Area.Width(),
				Y:       z.Area.MinY + t.rng.Float64()*z.Area.Height(),
				Density: density,
			})
		}
	}
}

// EstimatedPositions returns a copy of the synthetic positions.
func (t *Tracker) EstimatedPositions() []model.Position {
	out := make([]model.Position, len(t.positions))
	copy(out, t.positions)
	return out
}

// RSSIToDistance converts a signal strength to metres with the log-distance
// path-loss model. Non-physical readings (>= 0 dBm) map to zero.
func (t *Tracker) RSSIToDistance(rssi float64) float64 {
	if rssi >= 0 {
		return 0
	}
	return math.Pow(10, (t.cfg.TxPowerDBm-rssi)/(10*t.cfg.PathLossExponent))
}

// TriangulatePosition returns the inverse-distance weighted centroid of the
// nodes that heard the device, or the room center when none did.
func (t *Tracker) TriangulatePosition(rssiByNode map[model.NodeID]float64) model.Point {
	var sx, sy, sw float64
	for _, n := range t.site.Nodes {
		rssi, ok := rssiByNode[n.ID]
		if !ok || math.IsNaN(rssi) {
			continue
		}
		w := 1 / math.Max(t.RSSIToDistance(rssi), t.cfg.MinDistanceM)
		sx += n.Position.X * w
		sy += n.Position.Y * w
		sw += w
	}
	if sw == 0 {
		return t.site.Room.Center()
	}
	return t.site.Room.Clamp(model.Point{X: sx / sw, Y: sy / sw})
}

// Heatmap bins the positions into a grid x grid matrix normalised to the
// busiest cell. Row 0 is the bottom of the room.
func (t *Tracker) Heatmap(grid int) [][]float64 {
	if grid < 1 {
		grid = defaultHeatGrid
	}
	out := make([][]float64, grid)
	for i := range out {
		out[i] = make([]float64, grid)
	}
	room := t.site.Room
	var peak float64
	for _, p := range t.positions {
		col := cellIndex(p.X, room.Width, grid)
		row := cellIndex(p.Y, room.Height, grid)
		out[row][col]++
		peak = math.Max(peak, out[row][col])
	}
	if peak > 0 {
		for _, row := range out {
			floats.Scale(1/peak, row)
		}
	}
	return out
}

func cellIndex(v, extent float64, n int) int {
	i := int(v / extent * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Trend compares the mean of the last five rounds against the five before.
func (t *Tracker) Trend() Trend {
	if len(t.history) < 2*trendWindow {
		return TrendUnknown
	}
	tail := t.history[len(t.history)-2*trendWindow:]
	older := make([]float64, trendWindow)
	recent := make([]float64, trendWindow)
	for i := 0; i < trendWindow; i++ {
		older[i] = float64(tail[i].count)
		recent[i] = float64(tail[trendWindow+i].count)
	}
	diff := stat.Mean(recent, nil) - stat.Mean(older, nil)
	switch {
	case diff > t.cfg.TrendThreshold:
		return TrendIncreasing
	case diff < -t.cfg.TrendThreshold:
		return TrendDecreasing
	}
	return TrendStable
}

// Stats returns a summary.
func (t *Tracker) Stats() Stats {
	raw := t.RawCounts()
	return Stats{
		DeviceCount: t.DeviceCount(),
		ActiveNodes: len(raw),
		RawCounts:   raw,
		Peak:        t.peak,
		Updates:     t.updates,
		Trend:       t.Trend(),
	}
}
