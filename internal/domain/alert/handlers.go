package alert

import (
	"context"
	"fmt"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

// ConsoleHandler writes alerts to the log at a matching severity.
type ConsoleHandler struct {
	Logger logger.Logger
}

// Handle logs a.
func (h ConsoleHandler) Handle(ctx context.Context, a model.Alert) error {
	fields := []logger.Field{
		logger.String("alert_id", a.ID),
		logger.String("level", a.Level.String()),
		logger.String("state", a.State.String()),
		logger.Float64("risk", a.RiskScore),
		logger.Bool("broadcast", a.Broadcast),
	}
	if a.Zone != "" {
		fields = append(fields, logger.String("zone", a.Zone))
	}
	switch a.Level {
	case model.LevelInfo:
		h.Logger.Info(ctx, a.Message, fields...)
	case model.LevelWarning:
		h.Logger.Warn(ctx, a.Message, fields...)
	default:
		h.Logger.Error(ctx, a.Message, fields...)
	}
	return nil
}

// Buzzer sends an audible signal to a hardware node.
type Buzzer interface {
	Buzz(ctx context.Context, level model.AlertLevel) error
}

// BuzzerHandler forwards alerts at or above MinLevel to a Buzzer.
type BuzzerHandler struct {
	Buzzer   Buzzer
	MinLevel model.AlertLevel
}

// NewBuzzerHandler buzzes for CRITICAL and EMERGENCY alerts.
func NewBuzzerHandler(b Buzzer) *BuzzerHandler {
	return &BuzzerHandler{Buzzer: b, MinLevel: model.LevelCritical}
}

// Handle buzzes when a is severe enough.
func (h *BuzzerHandler) Handle(ctx context.Context, a model.Alert) error {
	if a.Level < h.MinLevel {
		return nil
	}
	if err := h.Buzzer.Buzz(ctx, a.Level); err != nil {
		return fmt.Errorf("buzz %s: %w", a.Level, err)
	}
	return nil
}
