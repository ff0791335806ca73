package alert

import (
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

// Config holds the gating parameters.
type Config struct {
	// Cooldown is the minimum gap between two alerts of the same level.
	Cooldown time.Duration `koanf:"cooldown"`
	// LevelCooldowns overrides Cooldown per level name, e.g. "EMERGENCY": 10s.
	LevelCooldowns map[string]time.Duration `koanf:"level_cooldowns"`
	RateLimit      int                      `koanf:"rate_limit"`
	RateWindow     time.Duration            `koanf:"rate_window"`
	HistorySize    int                      `koanf:"history_size"`
	MinLevel       string                   `koanf:"min_level"`
}

// DefaultConfig returns 30s cooldowns and at most ten alerts a minute.
func DefaultConfig() Config {
	return Config{
		Cooldown:    30 * time.Second,
		RateLimit:   10,
		RateWindow:  time.Minute,
		HistorySize: 100,
		MinLevel:    model.LevelInfo.String(),
	}
}

// Validate checks every field, including the level names.
func (c Config) Validate() error {
	switch {
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", model.ErrInvalidConfig)
	case c.RateLimit < 1 || c.RateWindow <= 0:
		return fmt.Errorf("%w: rate limit needs a positive count and window", model.ErrInvalidConfig)
	case c.HistorySize < 1:
		return fmt.Errorf("%w: history size must be positive", model.ErrInvalidConfig)
	}
	if _, err := model.ParseAlertLevel(c.MinLevel); err != nil {
		return err
	}
	for name, d := range c.LevelCooldowns {
		if _, err := model.ParseAlertLevel(name); err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("%w: cooldown for %s must not be negative", model.ErrInvalidConfig, name)
		}
	}
	return nil
}

// cooldowns resolves the per-level table.
func (c Config) cooldowns() [model.LevelEmergency + 1]time.Duration {
	var out [model.LevelEmergency + 1]time.Duration
	for i := range out {
		out[i] = c.Cooldown
	}
	for name, d := range c.LevelCooldowns {
		if l, err := model.ParseAlertLevel(name); err == nil {
			out[l] = d
		}
	}
	return out
}
