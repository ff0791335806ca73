package passage

import (
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Config holds the doorway thresholds. Distances are centimetres.
type Config struct {
	PresenceCM      float64       `koanf:"presence_cm"`
	PassageCM       float64       `koanf:"passage_cm"`
	ReturnCM        float64       `koanf:"return_cm"`
	MinPassage      time.Duration `koanf:"min_passage"`
	ReturnDuration  time.Duration `koanf:"return_duration"`
	Cooldown        time.Duration `koanf:"cooldown"`
	FlowWindow      time.Duration `koanf:"flow_window"`
	VelocityWindow  time.Duration `koanf:"velocity_window"`
	VelocitySamples int           `koanf:"velocity_samples"`
	HistorySize     int           `koanf:"history_size"`
}

// DefaultConfig returns thresholds tuned for a 1 m wide door.
func DefaultConfig() Config {
	return Config{
		PresenceCM:      150,
		PassageCM:       50,
		ReturnCM:        150,
		MinPassage:      200 * time.Millisecond,
		ReturnDuration:  500 * time.Millisecond,
		Cooldown:        800 * time.Millisecond,
		FlowWindow:      60 * time.Second,
		VelocityWindow:  30 * time.Second,
		VelocitySamples: 60,
		HistorySize:     1000,
	}
}

// Validate rejects unordered thresholds and non-positive windows.
func (c Config) Validate() error {
	switch {
	case c.PassageCM <= 0:
		return fmt.Errorf("%w: passage threshold must be positive", model.ErrInvalidConfig)
	case c.PassageCM >= c.PresenceCM:
		return fmt.Errorf("%w: passage threshold %v must be below presence threshold %v", model.ErrInvalidConfig, c.PassageCM, c.PresenceCM)
	case c.PresenceCM > model.MaxDistanceCM:
		return fmt.Errorf("%w: presence threshold %v exceeds sensor range", model.ErrInvalidConfig, c.PresenceCM)
	case c.ReturnCM < c.PassageCM || c.ReturnCM >= model.MaxDistanceCM:
		return fmt.Errorf("%w: return threshold %v must lie in [passage, sensor range)", model.ErrInvalidConfig, c.ReturnCM)
	case c.MinPassage <= 0, c.ReturnDuration <= 0:
		return fmt.Errorf("%w: passage and return durations must be positive", model.ErrInvalidConfig)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", model.ErrInvalidConfig)
	case c.FlowWindow <= 0, c.VelocityWindow <= 0:
		return fmt.Errorf("%w: flow windows must be positive", model.ErrInvalidConfig)
	case c.VelocitySamples < 2:
		return fmt.Errorf("%w: velocity needs at least two samples", model.ErrInvalidConfig)
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history size must be positive", model.ErrInvalidConfig)
	}
	return nil
}
