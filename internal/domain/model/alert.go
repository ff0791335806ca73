package model

import (
	"fmt"
	"strings"
	"time"
)

// AlertLevel is the severity of an alert.
type AlertLevel int

// Alert levels in rank order.
const (
	LevelInfo AlertLevel = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

var alertLevelNames = [...]string{"INFO", "WARNING", "CRITICAL", "EMERGENCY"}

// Valid reports whether l is a known level.
func (l AlertLevel) Valid() bool { return l >= LevelInfo && l <= LevelEmergency }

func (l AlertLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("AlertLevel(%d)", int(l))
	}
	return alertLevelNames[l]
}

// MarshalText renders the level name.
func (l AlertLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText parses a level name.
func (l *AlertLevel) UnmarshalText(b []byte) error {
	v, err := ParseAlertLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseAlertLevel parses a case-insensitive level name.
func ParseAlertLevel(name string) (AlertLevel, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for i, v := range alertLevelNames {
		if v == n {
			return AlertLevel(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("%w: unknown alert level %q", ErrInvalidConfig, name)
}

// LevelForState maps a system state onto the alert level announcing it.
func LevelForState(s SystemState) AlertLevel {
	switch s {
	case StateElevated:
		return LevelWarning
	case StateCritical:
		return LevelCritical
	case StateSurge:
		return LevelEmergency
	}
	return LevelInfo
}

// Alert is an emitted notification. It is never mutated after creation.
type Alert struct {
	ID         string      `json:"id"`
	At         time.Time   `json:"at"`
	Level      AlertLevel  `json:"level"`
	State      SystemState `json:"state"`
	Previous   SystemState `json:"previous"`
	Escalation bool        `json:"escalation"`
	Broadcast  bool        `json:"broadcast"`
	Message    string      `json:"message"`
	Zone       string      `json:"zone,omitempty"`
	RiskScore  float64     `json:"risk_score"`
}
