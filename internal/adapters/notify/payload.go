// Package notify publishes alerts to message brokers. Each publisher is an
// alert handler, so a broker outage only ever fails its own dispatch.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Envelope is the message body shared by every broker.
type Envelope struct {
	Source string      `json:"source"`
	Sent   time.Time   `json:"sent"`
	Alert  model.Alert `json:"alert"`
}

// Encode renders a as an Envelope stamped with sent.
func Encode(source string, a model.Alert, sent time.Time) ([]byte, error) {
	b, err := json.Marshal(Envelope{Source: source, Sent: sent.UTC(), Alert: a})
	if err != nil {
		return nil, fmt.Errorf("encode alert %s: %w", a.ID, err)
	}
	return b, nil
}
