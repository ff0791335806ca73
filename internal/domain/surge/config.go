package surge

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const weightTolerance = 0.01

// Weights are the per-component factors of the fused risk score. They must
// sum to 1.
type Weights struct {
	FlowImbalance  float64 `koanf:"flow_imbalance" json:"flow_imbalance"`
	EntryVelocity  float64 `koanf:"entry_velocity" json:"entry_velocity"`
	ClusterDensity float64 `koanf:"cluster_density" json:"cluster_density"`
	ZoneBlockage   float64 `koanf:"zone_blockage" json:"zone_blockage"`
	SoundLevel     float64 `koanf:"sound_level" json:"sound_level"`
}

// DefaultWeights returns the static weighting shipped with the service.
func DefaultWeights() Weights {
	return Weights{
		FlowImbalance:  0.20,
		EntryVelocity:  0.20,
		ClusterDensity: 0.30,
		ZoneBlockage:   0.20,
		SoundLevel:     0.10,
	}
}

// Sum adds the five weights.
func (w Weights) Sum() float64 {
	return w.FlowImbalance + w.EntryVelocity + w.ClusterDensity + w.ZoneBlockage + w.SoundLevel
}

// Apply returns the weighted sum of c clamped to [0,1].
func (w Weights) Apply(c Components) float64 {
	c = c.bounded()
	return model.Clamp01(w.FlowImbalance*c.FlowImbalance +
		w.EntryVelocity*c.EntryVelocity +
		w.ClusterDensity*c.ClusterDensity +
		w.ZoneBlockage*c.ZoneBlockage +
		w.SoundLevel*c.SoundLevel)
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.FlowImbalance, w.EntryVelocity, w.ClusterDensity, w.ZoneBlockage, w.SoundLevel} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: weights must be non-negative", model.ErrInvalidConfig)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %.3f, want 1.0", model.ErrInvalidConfig, sum)
	}
	return nil
}

// Config holds the fusion parameters and the hysteresis delays.
type Config struct {
	Weights Weights `koanf:"weights"`
	// Thresholds are the risk scores at which NORMAL, ELEVATED, CRITICAL and
	// SURGE begin.
	Thresholds      []float64     `koanf:"thresholds"`
	EscalateDelay   time.Duration `koanf:"escalate_delay"`
	DeescalateDelay time.Duration `koanf:"deescalate_delay"`
	// StaleAfter flags a present reading whose age exceeds it.
	StaleAfter time.Duration `koanf:"stale_after"`

	// ReferenceCM is the distance read in an empty hall.
	ReferenceCM    float64 `koanf:"reference_cm"`
	VelocitySpanCM float64 `koanf:"velocity_span_cm"`
	PressureFloor  float64 `koanf:"pressure_floor"`
	ExitDamping    float64 `koanf:"exit_damping"`
	BlockedCM      float64 `koanf:"blocked_cm"`

	QuietDB  float64 `koanf:"quiet_db"`
	LoudDB   float64 `koanf:"loud_db"`
	ScreamDB float64 `koanf:"scream_db"`

	RiskHistory    int     `koanf:"risk_history"`
	StateHistory   int     `koanf:"state_history"`
	TrendWindow    int     `koanf:"trend_window"`
	TrendThreshold float64 `koanf:"trend_threshold"`
}

// DefaultConfig returns the stock engine parameters.
func DefaultConfig() Config {
	return Config{
		Weights:         DefaultWeights(),
		Thresholds:      []float64{0.15, 0.35, 0.55, 0.75},
		EscalateDelay:   3 * time.Second,
		DeescalateDelay: 10 * time.Second,
		StaleAfter:      2 * time.Second,
		ReferenceCM:     300,
		VelocitySpanCM:  200,
		PressureFloor:   0.1,
		ExitDamping:     0.5,
		BlockedCM:       80,
		QuietDB:         55,
		LoudDB:          70,
		ScreamDB:        85,
		RiskHistory:     300,
		StateHistory:    100,
		TrendWindow:     10,
		TrendThreshold:  0.1,
	}
}

// Validate checks weights, threshold order and delays.
func (c Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if len(c.Thresholds) != int(model.StateSurge) {
		return fmt.Errorf("%w: need %d state thresholds, got %d", model.ErrInvalidConfig, int(model.StateSurge), len(c.Thresholds))
	}
	if !sort.Float64sAreSorted(c.Thresholds) || c.Thresholds[0] <= 0 || c.Thresholds[len(c.Thresholds)-1] > 1 {
		return fmt.Errorf("%w: state thresholds must ascend within (0,1]: %v", model.ErrInvalidConfig, c.Thresholds)
	}
	for i := 1; i < len(c.Thresholds); i++ {
		if c.Thresholds[i] == c.Thresholds[i-1] {
			return fmt.Errorf("%w: state thresholds must be strictly ascending: %v", model.ErrInvalidConfig, c.Thresholds)
		}
	}
	switch {
	case c.EscalateDelay < 0 || c.DeescalateDelay < 0:
		return fmt.Errorf("%w: hysteresis delays must not be negative", model.ErrInvalidConfig)
	case c.StaleAfter <= 0:
		return fmt.Errorf("%w: stale_after must be positive", model.ErrInvalidConfig)
	case c.ReferenceCM <= 0 || c.ReferenceCM > model.MaxDistanceCM || c.VelocitySpanCM <= 0:
		return fmt.Errorf("%w: reference distance and velocity span must be positive and in range", model.ErrInvalidConfig)
	case c.PressureFloor < 0 || c.PressureFloor >= 1 || c.ExitDamping < 0 || c.ExitDamping > 1:
		return fmt.Errorf("%w: pressure floor and exit damping must lie in [0,1)", model.ErrInvalidConfig)
	case c.BlockedCM <= 0:
		return fmt.Errorf("%w: blocked distance must be positive", model.ErrInvalidConfig)
	case !(c.QuietDB < c.LoudDB && c.LoudDB < c.ScreamDB):
		return fmt.Errorf("%w: sound thresholds must ascend: %v < %v < %v", model.ErrInvalidConfig, c.QuietDB, c.LoudDB, c.ScreamDB)
	case c.RiskHistory < 1 || c.StateHistory < 1:
		return fmt.Errorf("%w: history sizes must be positive", model.ErrInvalidConfig)
	case c.TrendWindow < 1 || c.TrendThreshold < 0:
		return fmt.Errorf("%w: invalid trend window", model.ErrInvalidConfig)
	}
	return nil
}
