// Package cluster finds dense groups of estimated device positions on a fixed
// grid laid over the room. Each Update rebuilds the grid and the cluster list
// from scratch; clusters have no identity across updates.
package cluster

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const (
	sizeWeight      = 0.5
	countWeight     = 0.2
	highRiskWeight  = 0.3
	sizeHeadroom    = 1.5
	clusterCountCap = 5.0
	highRiskCap     = 2.0
)

// Config holds the grid and classification thresholds.
//
// A cell seeds the flood fill once it holds DensityThreshold devices. Cells
// that hold MinClusterSize devices but never seed it are reported on their own
// afterwards, which can only happen when MinClusterSize < DensityThreshold;
// with the defaults (2 and 3) every such cell is already found by the fill.
type Config struct {
	CellSizeM        float64 `koanf:"cell_size_m"`
	DensityThreshold int     `koanf:"density_threshold"`
	MinClusterSize   int     `koanf:"min_cluster_size"`
	MediumThreshold  int     `koanf:"medium_threshold"`
	HighThreshold    int     `koanf:"high_threshold"`
	// DedupeRadiusCells suppresses a single-cell cluster whose center lies
	// within this many cell widths of an existing cluster.
	DedupeRadiusCells float64 `koanf:"dedupe_radius_cells"`
	HistorySize       int     `koanf:"history_size"`
}

// DefaultConfig returns 2 m cells with LOW/MEDIUM/HIGH at 3/5/8 devices.
func DefaultConfig() Config {
	return Config{
		CellSizeM:         2.0,
		DensityThreshold:  2,
		MinClusterSize:    3,
		MediumThreshold:   5,
		HighThreshold:     8,
		DedupeRadiusCells: 1.5,
		HistorySize:       100,
	}
}

// Validate checks the thresholds are positive and ascending.
func (c Config) Validate() error {
	switch {
	case c.CellSizeM <= 0:
		return fmt.Errorf("%w: cell size must be positive", model.ErrInvalidConfig)
	case c.DensityThreshold < 1 || c.MinClusterSize < 1:
		return fmt.Errorf("%w: density threshold and minimum cluster size must be at least 1", model.ErrInvalidConfig)
	case c.MinClusterSize > c.MediumThreshold || c.MediumThreshold >= c.HighThreshold:
		return fmt.Errorf("%w: cluster thresholds must ascend: min %d <= medium %d < high %d",
			model.ErrInvalidConfig, c.MinClusterSize, c.MediumThreshold, c.HighThreshold)
	case c.DedupeRadiusCells <= 0:
		return fmt.Errorf("%w: dedupe radius must be positive", model.ErrInvalidConfig)
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history size must be positive", model.ErrInvalidConfig)
	}
	return nil
}

// Stats summarises the detector.
type Stats struct {
	ClusterCount   int     `json:"cluster_count"`
	MaxClusterSize int     `json:"max_cluster_size"`
	MaxEver        int     `json:"max_ever"`
	HighRisk       int     `json:"high_risk"`
	RiskScore      float64 `json:"risk_score"`
	Devices        int     `json:"devices"`
	Updates        int     `json:"updates"`
}

type sample struct {
	clusters int
	largest  int
}

type cell struct{ row, col int }

// Detector owns the grid. It is not safe for concurrent use.
type Detector struct {
	cfg        Config
	rows, cols int

	grid     [][]int
	clusters []model.Cluster
	devices  int
	history  []sample
	maxEver  int
	updates  int
}

// NewDetector sizes the grid to the room.
func NewDetector(room model.Room, cfg Config) (*Detector, error) {
	if room.Width <= 0 || room.Height <= 0 {
		return nil, fmt.Errorf("cluster detector: %w: room must have positive dimensions", model.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cluster detector: %w", err)
	}
	d := &Detector{
		cfg:  cfg,
		cols: max(1, int(room.Width/cfg.CellSizeM)),
		rows: max(1, int(room.Height/cfg.CellSizeM)),
	}
	d.grid = make([][]int, d.rows)
	for i := range d.grid {
		d.grid[i] = make([]int, d.cols)
	}
	return d, nil
}

// Update bins positions and rebuilds the clusters.
func (d *Detector) Update(positions []model.Position) {
	for _, row := range d.grid {
		clear(row)
	}
	d.devices = 0
	for _, p := range positions {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) {
			continue
		}
		c := d.cellOf(p.X, p.Y)
		d.grid[c.row][c.col]++
		d.devices++
	}

	visited := make([][]bool, d.rows)
	for i := range visited {
		visited[i] = make([]bool, d.cols)
	}

	d.clusters = d.clusters[:0]
	for r := 0; r < d.rows; r++ {
		for c := 0; c < d.cols; c++ {
			if visited[r][c] || d.grid[r][c] < d.cfg.DensityThreshold {
				continue
			}
			if cl, ok := d.grow(cell{r, c}, visited); ok {
				d.clusters = append(d.clusters, cl)
			}
		}
	}
	d.addIsolatedCells(visited)

	sort.SliceStable(d.clusters, func(i, j int) bool {
		a, b := d.clusters[i], d.clusters[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})

	d.updates++
	largest := d.MaxClusterSize()
	if largest > d.maxEver {
		d.maxEver = largest
	}
	if len(d.history) == d.cfg.HistorySize {
		copy(d.history, d.history[1:])
		d.history = d.history[:len(d.history)-1]
	}
	d.history = append(d.history, sample{clusters: len(d.clusters), largest: largest})
}

// grow runs a 4-connected breadth-first search over dense cells from start.
func (d *Detector) grow(start cell, visited [][]bool) (model.Cluster, bool) {
	queue := []cell{start}
	visited[start.row][start.col] = true
	var xs, ys, ws []float64
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		n := d.grid[cur.row][cur.col]
		cx, cy := d.center(cur)
		xs, ys, ws = append(xs, cx), append(ys, cy), append(ws, float64(n))

		for _, nb := range [...]cell{{cur.row - 1, cur.col}, {cur.row + 1, cur.col}, {cur.row, cur.col - 1}, {cur.row, cur.col + 1}} {
			if nb.row < 0 || nb.row >= d.rows || nb.col < 0 || nb.col >= d.cols {
				continue
			}
			if visited[nb.row][nb.col] || d.grid[nb.row][nb.col] < d.cfg.DensityThreshold {
				continue
			}
			visited[nb.row][nb.col] = true
			queue = append(queue, nb)
		}
	}
	count := 0
	for _, w := range ws {
		count += int(w)
	}
	if count < d.cfg.MinClusterSize {
		return model.Cluster{}, false
	}
	return model.Cluster{
		X:     stat.Mean(xs, ws),
		Y:     stat.Mean(ys, ws),
		Count: count,
		Cells: len(ws),
		Tier:  d.tier(count),
	}, true
}

// addIsolatedCells reports cells that reach the minimum size on their own but
// were not absorbed by the search, unless a cluster already sits nearby.
func (d *Detector) addIsolatedCells(visited [][]bool) {
	radius := d.cfg.DedupeRadiusCells * d.cfg.CellSizeM
	for r := 0; r < d.rows; r++ {
		for c := 0; c < d.cols; c++ {
			n := d.grid[r][c]
			if visited[r][c] || n < d.cfg.MinClusterSize {
				continue
			}
			x, y := d.center(cell{r, c})
			near := false
			for _, cl := range d.clusters {
				if math.Hypot(cl.X-x, cl.Y-y) < radius {
					near = true
					break
				}
			}
			if !near {
				d.clusters = append(d.clusters, model.Cluster{X: x, Y: y, Count: n, Cells: 1, Tier: d.tier(n)})
			}
		}
	}
}

func (d *Detector) cellOf(x, y float64) cell {
	col := min(max(int(x/d.cfg.CellSizeM), 0), d.cols-1)
	row := min(max(int(y/d.cfg.CellSizeM), 0), d.rows-1)
	return cell{row: row, col: col}
}

func (d *Detector) center(c cell) (float64, float64) {
	return (float64(c.col) + 0.5) * d.cfg.CellSizeM, (float64(c.row) + 0.5) * d.cfg.CellSizeM
}

func (d *Detector) tier(count int) model.RiskTier {
	switch {
	case count >= d.cfg.HighThreshold:
		return model.TierHigh
	case count >= d.cfg.MediumThreshold:
		return model.TierMedium
	}
	return model.TierLow
}

// Clusters returns a copy of the current clusters, largest first.
func (d *Detector) Clusters() []model.Cluster {
	out := make([]model.Cluster, len(d.clusters))
	copy(out, d.clusters)
	return out
}

// HighRiskClusters returns the HIGH tier clusters.
func (d *Detector) HighRiskClusters() []model.Cluster {
	var out []model.Cluster
	for _, c := range d.clusters {
		if c.Tier == model.TierHigh {
			out = append(out, c)
		}
	}
	return out
}

// MaxClusterSize returns the device count of the largest current cluster.
func (d *Detector) MaxClusterSize() int {
	if len(d.clusters) == 0 {
		return 0
	}
	return d.clusters[0].Count
}

// RiskScore combines the largest cluster size, the number of clusters and the
// number of HIGH clusters into [0,1].
func (d *Detector) RiskScore() float64 {
	if len(d.clusters) == 0 {
		return 0
	}
	size := math.Min(1, float64(d.MaxClusterSize())/(float64(d.cfg.HighThreshold)*sizeHeadroom))
	count := math.Min(1, float64(len(d.clusters))/clusterCountCap)
	high := math.Min(1, float64(len(d.HighRiskClusters()))/highRiskCap)
	return math.Min(1, sizeWeight*size+countWeight*count+highRiskWeight*high)
}

// Grid returns a copy of the per-cell device counts. Row 0 is the bottom of
// the room.
func (d *Detector) Grid() [][]int {
	out := make([][]int, d.rows)
	for i, row := range d.grid {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Stats returns a summary.
func (d *Detector) Stats() Stats {
	return Stats{
		ClusterCount:   len(d.clusters),
		MaxClusterSize: d.MaxClusterSize(),
		MaxEver:        d.maxEver,
		HighRisk:       len(d.HighRiskClusters()),
		RiskScore:      d.RiskScore(),
		Devices:        d.devices,
		Updates:        d.updates,
	}
}
