package service

import (
	"context"
	"sync"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/alert"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/device"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// StateSetter mirrors the committed system state onto a device.
type StateSetter interface {
	SetState(ctx context.Context, state model.SystemState) error
}

// Outcome is what one tick produced.
type Outcome struct {
	Result surge.Result
	Alert  *model.Alert
}

// Pipeline runs one synchronous tick: snapshot, engine, alerts. It serialises
// access to the engine, which is single-threaded.
type Pipeline struct {
	mu     sync.Mutex
	engine *surge.Engine
	alerts *alert.Manager
	door   StateSetter
	logger logger.Logger
}

// NewPipeline wires engine and alerts. door may be nil.
func NewPipeline(engine *surge.Engine, alerts *alert.Manager, door StateSetter, l logger.Logger) *Pipeline {
	if l == nil {
		l = logger.Get().Named("pipeline")
	}
	return &Pipeline{engine: engine, alerts: alerts, door: door, logger: l}
}

// Tick processes snap. A committed state change produces at most one alert
// and one door command.
func (p *Pipeline) Tick(ctx context.Context, snap model.Snapshot) Outcome {
	start := time.Now()
	p.mu.Lock()
	res := p.engine.Process(snap)
	p.mu.Unlock()

	out := Outcome{Result: res}
	if res.Changed {
		metrics.RecordStateTransition(res.Previous.String(), res.State.String())
		if a, ok := p.alerts.Process(ctx, res.Previous, res.State, res.RiskScore, res.At); ok {
			out.Alert = &a
		}
		if p.door != nil {
			if err := p.door.SetState(ctx, res.State); err != nil {
				p.logger.Warn(ctx, "door state update failed",
					logger.String("state", res.State.String()), logger.Error(err))
			}
		}
	}
	publish(res)
	metrics.RecordTickDuration(float64(time.Since(start).Microseconds()) / 1000)
	return out
}

// Observe feeds one reading to the engine's detectors as it arrives.
func (p *Pipeline) Observe(r model.Reading) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Observe(r)
}

func publish(res surge.Result) {
	metrics.UpdateRiskScore(res.RiskScore)
	for name, v := range res.Components.Map() {
		metrics.UpdateRiskComponent(name, v)
	}
	metrics.UpdateSystemState(int(res.State))
	for _, z := range res.Zones {
		metrics.UpdateZoneState(string(z.Zone), int(z.State))
	}
	metrics.UpdatePassages(res.PassageCount, res.PassageRate)
	metrics.UpdateDeviceCount(res.DeviceCount)
	metrics.UpdateClusterCount(res.ClusterCount)
}

// Last returns the latest engine result.
func (p *Pipeline) Last() surge.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Last()
}

// Heatmap returns the device heatmap.
func (p *Pipeline) Heatmap(grid int) [][]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Heatmap(grid)
}

// ZoneDevices returns the per-zone device spread.
func (p *Pipeline) ZoneDevices() []device.ZoneCount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.ZoneDevices()
}

// RiskHistory returns the newest n risk samples.
func (p *Pipeline) RiskHistory(n int) []surge.RiskSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.RiskHistory(n)
}

// Transitions returns the committed state changes.
func (p *Pipeline) Transitions() []surge.Transition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Transitions()
}

// EngineStats returns the engine summary.
func (p *Pipeline) EngineStats() surge.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine.Stats()
}
