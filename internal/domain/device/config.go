package device

import (
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Config holds the Wi-Fi fusion and path-loss parameters.
type Config struct {
	// Timeout drops a node from the active set when its last scan is older.
	Timeout time.Duration `koanf:"timeout"`
	// OverlapFactor is the share of non-maximal node counts assumed unseen by
	// the busiest node.
	OverlapFactor float64 `koanf:"overlap_factor"`
	// AdoptionMultiplier scales devices to people.
	AdoptionMultiplier float64 `koanf:"adoption_multiplier"`
	TxPowerDBm         float64 `koanf:"tx_power_dbm"`
	PathLossExponent   float64 `koanf:"path_loss_exponent"`
	MinDistanceM       float64 `koanf:"min_distance_m"`
	// NodeZoneShare is the fraction of a node's devices placed in its own
	// zone; the rest go to the center zone.
	NodeZoneShare float64 `koanf:"node_zone_share"`
	// DensityNorm is the devices per square metre that saturates the density hint.
	DensityNorm    float64 `koanf:"density_norm"`
	HistorySize    int     `koanf:"history_size"`
	TrendThreshold float64 `koanf:"trend_threshold"`
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		Timeout:            30 * time.Second,
		OverlapFactor:      0.3,
		AdoptionMultiplier: 1.4,
		TxPowerDBm:         -59,
		PathLossExponent:   2.5,
		MinDistanceM:       0.1,
		NodeZoneShare:      0.6,
		DensityNorm:        5,
		HistorySize:        300,
		TrendThreshold:     2,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	switch {
	case c.Timeout <= 0:
		return fmt.Errorf("%w: device timeout must be positive", model.ErrInvalidConfig)
	case c.OverlapFactor < 0 || c.OverlapFactor > 1:
		return fmt.Errorf("%w: overlap factor must lie in [0,1]", model.ErrInvalidConfig)
	case c.AdoptionMultiplier <= 0:
		return fmt.Errorf("%w: adoption multiplier must be positive", model.ErrInvalidConfig)
	case c.TxPowerDBm >= 0:
		return fmt.Errorf("%w: tx power at 1m must be negative dBm", model.ErrInvalidConfig)
	case c.PathLossExponent <= 0:
		return fmt.Errorf("%w: path loss exponent must be positive", model.ErrInvalidConfig)
	case c.MinDistanceM <= 0:
		return fmt.Errorf("%w: minimum distance must be positive", model.ErrInvalidConfig)
	case c.NodeZoneShare <= 0 || c.NodeZoneShare > 1:
		return fmt.Errorf("%w: node zone share must lie in (0,1]", model.ErrInvalidConfig)
	case c.DensityNorm <= 0:
		return fmt.Errorf("%w: density norm must be positive", model.ErrInvalidConfig)
	case c.HistorySize < 10:
		return fmt.Errorf("%w: history size must be at least 10", model.ErrInvalidConfig)
	case c.TrendThreshold < 0:
		return fmt.Errorf("%w: trend threshold must not be negative", model.ErrInvalidConfig)
	}
	return nil
}
