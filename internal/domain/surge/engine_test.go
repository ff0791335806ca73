package surge_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func tick(i int) time.Time { return t0.Add(time.Duration(i) * 500 * time.Millisecond) }

func snapshot(at time.Time, dist float64, motion bool, wifi int) model.Snapshot {
	s := model.Snapshot{At: at, Readings: map[model.NodeID]model.Reading{}}
	for _, id := range []model.NodeID{model.NodeA, model.NodeB, model.NodeC} {
		s.Readings[id] = model.Reading{Node: id, DistanceCM: dist, Motion: motion, WiFiCount: wifi, Timestamp: at}
	}
	return s
}

func newEngine() *surge.Engine {
	e, err := surge.New(model.DefaultSite(), surge.DefaultConfig(), surge.WithRand(rand.New(rand.NewSource(7))))
	So(err, ShouldBeNil)
	return e
}

func TestConfig(t *testing.T) {
	Convey("Given engine configuration", t, func() {
		Convey("The defaults validate and the weights sum to one", func() {
			So(surge.DefaultConfig().Validate(), ShouldBeNil)
			So(surge.DefaultWeights().Sum(), ShouldAlmostEqual, 1.0)
		})

		Convey("Weights that do not sum to one are rejected", func() {
			cfg := surge.DefaultConfig()
			cfg.Weights.SoundLevel = 0.3
			_, err := surge.New(model.DefaultSite(), cfg)
			So(errors.Is(err, model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("A small rounding error in the weights is tolerated", func() {
			cfg := surge.DefaultConfig()
			cfg.Weights.SoundLevel = 0.105
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Negative weights are rejected", func() {
			cfg := surge.DefaultConfig()
			cfg.Weights = surge.Weights{FlowImbalance: -0.1, EntryVelocity: 0.4, ClusterDensity: 0.3, ZoneBlockage: 0.2, SoundLevel: 0.2}
			So(errors.Is(cfg.Validate(), model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Thresholds must ascend and number four", func() {
			cfg := surge.DefaultConfig()
			cfg.Thresholds = []float64{0.15, 0.55, 0.35, 0.75}
			So(errors.Is(cfg.Validate(), model.ErrInvalidConfig), ShouldBeTrue)
			cfg.Thresholds = []float64{0.15, 0.35, 0.75}
			So(errors.Is(cfg.Validate(), model.ErrInvalidConfig), ShouldBeTrue)
			cfg.Thresholds = []float64{0.15, 0.35, 0.35, 0.75}
			So(errors.Is(cfg.Validate(), model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("Sound thresholds must ascend", func() {
			cfg := surge.DefaultConfig()
			cfg.LoudDB = 90
			So(errors.Is(cfg.Validate(), model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("An invalid site fails construction", func() {
			site := model.DefaultSite()
			site.Nodes[1].ID = model.NodeA
			_, err := surge.New(site, surge.DefaultConfig())
			So(errors.Is(err, model.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestScenario(t *testing.T) {
	Convey("Given a clear hall that suddenly packs in", t, func() {
		e := newEngine()

		for i := range 5 {
			r := e.Process(snapshot(tick(i), 300, false, 0))
			So(r.State, ShouldEqual, model.StateClear)
			So(r.RiskScore, ShouldEqual, 0)
		}

		Convey("The state climbs one rank per escalation delay", func() {
			start := 5
			var results []surge.Result
			for i := start; i < start+30; i++ {
				results = append(results, e.Process(snapshot(tick(i), 40, true, 0)))
			}

			first := results[0]
			So(first.RiskScore, ShouldAlmostEqual, 0.7867, 0.001)
			So(first.Target, ShouldEqual, model.StateSurge)
			So(first.State, ShouldEqual, model.StateClear)
			So(first.HasPending, ShouldBeTrue)
			So(first.Pending, ShouldEqual, model.StateNormal)
			So(first.Components.ClusterDensity, ShouldEqual, 1)
			So(first.Components.ZoneBlockage, ShouldEqual, 1)
			So(first.Components.EntryVelocity, ShouldEqual, 1)
			So(first.Components.FlowImbalance, ShouldAlmostEqual, 0.4333, 0.001)

			// 500ms ticks: each 3s escalation delay spans six ticks.
			So(results[5].State, ShouldEqual, model.StateClear)
			So(results[6].State, ShouldEqual, model.StateNormal)
			So(results[12].State, ShouldEqual, model.StateElevated)
			So(results[18].State, ShouldEqual, model.StateCritical)
			So(results[24].State, ShouldEqual, model.StateSurge)
			So(results[24].Changed, ShouldBeTrue)
			So(results[24].Previous, ShouldEqual, model.StateCritical)
			So(results[29].HasPending, ShouldBeFalse)

			var path []model.SystemState
			for _, tr := range e.Transitions() {
				So(tr.Escalation(), ShouldBeTrue)
				So(tr.To-tr.From, ShouldEqual, 1)
				path = append(path, tr.To)
			}
			So(path, ShouldResemble, []model.SystemState{model.StateNormal, model.StateElevated, model.StateCritical, model.StateSurge})
			So(e.ShouldAlert(), ShouldBeTrue)
			So(results[29].Recommendation, ShouldEqual, surge.Recommendation(model.StateSurge))
			So(results[29].Color, ShouldEqual, model.StateSurge.Color())
		})
	})
}

func TestHysteresis(t *testing.T) {
	Convey("Given an engine that has reached SURGE", t, func() {
		e := newEngine()
		i := 0
		for ; e.State() != model.StateSurge; i++ {
			e.Process(snapshot(tick(i), 40, true, 0))
			So(i, ShouldBeLessThan, 100)
		}

		Convey("Clear readings do not drop the state before the de-escalation delay", func() {
			calmFrom := i
			for ; i < calmFrom+20; i++ {
				r := e.Process(snapshot(tick(i), 300, false, 0))
				So(r.Target, ShouldEqual, model.StateClear)
				So(r.State, ShouldEqual, model.StateSurge)
			}
			r := e.Process(snapshot(tick(i), 300, false, 0))
			So(r.State, ShouldEqual, model.StateCritical)
			So(r.Changed, ShouldBeTrue)
			So(r.HasPending, ShouldBeTrue)
			So(r.Pending, ShouldEqual, model.StateElevated)
			So(e.Transitions()[len(e.Transitions())-1].Escalation(), ShouldBeFalse)
		})

		Convey("A brief calm followed by danger keeps SURGE", func() {
			for j := 0; j < 10; j++ {
				e.Process(snapshot(tick(i), 300, false, 0))
				i++
			}
			r := e.Process(snapshot(tick(i), 40, true, 0))
			So(r.State, ShouldEqual, model.StateSurge)
			So(r.HasPending, ShouldBeFalse)
		})
	})

	Convey("Given a pending escalation that reverses", t, func() {
		e := newEngine()
		for i := 0; i < 4; i++ {
			e.Process(snapshot(tick(i), 40, true, 0))
		}
		r := e.Process(snapshot(tick(4), 300, false, 0))
		So(r.HasPending, ShouldBeFalse)

		Convey("The escalation timer restarts from scratch", func() {
			for i := 5; i < 11; i++ {
				r = e.Process(snapshot(tick(i), 40, true, 0))
				So(r.State, ShouldEqual, model.StateClear)
			}
			r = e.Process(snapshot(tick(11), 40, true, 0))
			So(r.State, ShouldEqual, model.StateNormal)
		})
	})
}

func TestDegradation(t *testing.T) {
	Convey("Given snapshots with missing or stale nodes", t, func() {
		e := newEngine()

		Convey("Absent nodes are OFFLINE and never count as blocked", func() {
			s := model.Snapshot{At: t0, Readings: map[model.NodeID]model.Reading{
				model.NodeA: {Node: model.NodeA, DistanceCM: 40, Motion: true, Timestamp: t0},
			}}
			r := e.Process(s)
			So(r.Zones, ShouldHaveLength, 3)
			So(r.Zones[0].Online, ShouldBeTrue)
			So(r.Zones[1].State, ShouldEqual, model.ZoneOffline)
			So(r.Zones[2].State, ShouldEqual, model.ZoneOffline)
			So(r.Zones[2].Online, ShouldBeFalse)
			So(r.Components.FlowImbalance, ShouldEqual, 0)
			So(r.Components.ZoneBlockage, ShouldAlmostEqual, 1.0/3)
			So(r.Components.EntryVelocity, ShouldEqual, 1)
			So(r.RiskScore, ShouldAlmostEqual, 0.5667, 0.001)
			So(r.Target, ShouldEqual, model.StateCritical)
		})

		Convey("An empty snapshot scores zero", func() {
			r := e.Process(model.Snapshot{At: t0})
			So(r.RiskScore, ShouldEqual, 0)
			So(r.State, ShouldEqual, model.StateClear)
			for _, z := range r.Zones {
				So(z.State, ShouldEqual, model.ZoneOffline)
			}
		})

		Convey("Old but present readings are flagged stale and still used", func() {
			s := snapshot(t0, 40, true, 0)
			old := s.Readings[model.NodeB]
			old.Timestamp = t0.Add(-3 * time.Second)
			s.Readings[model.NodeB] = old
			r := e.Process(s)
			So(r.Zones[1].Stale, ShouldBeTrue)
			So(r.Zones[1].Age, ShouldEqual, 3*time.Second)
			So(r.Zones[0].Stale, ShouldBeFalse)
			So(r.Components.ZoneBlockage, ShouldEqual, 1)
		})

		Convey("Garbage distances are clamped rather than rejected", func() {
			s := snapshot(t0, -25, true, 0)
			r := e.Process(s)
			So(r.Zones[0].DistanceCM, ShouldEqual, 0)
			So(r.RiskScore, ShouldBeLessThanOrEqualTo, 1)
		})
	})
}

func TestSound(t *testing.T) {
	Convey("Given only the microphone node reporting sound", t, func() {
		e := newEngine()
		s := snapshot(t0, 300, false, 0)
		exit := s.Readings[model.NodeC]
		exit.Sound = model.Sound{DB: 77.5, Valid: true}
		s.Readings[model.NodeC] = exit
		entry := s.Readings[model.NodeA]
		entry.Sound = model.Sound{DB: 120, Valid: true}
		s.Readings[model.NodeA] = entry

		r := e.Process(s)
		So(r.Components.SoundLevel, ShouldAlmostEqual, 0.75)
		So(r.RiskScore, ShouldAlmostEqual, 0.075)
	})

	Convey("Given sound levels across the distress curve", t, func() {
		cases := map[float64]float64{50: 0, 55: 0, 62.5: 0.25, 70: 0.5, 85: 1, 110: 1}
		for db, want := range cases {
			e := newEngine()
			s := snapshot(t0, 300, false, 0)
			exit := s.Readings[model.NodeC]
			exit.Sound = model.Sound{DB: db, Valid: true}
			s.Readings[model.NodeC] = exit
			So(e.Process(s).Components.SoundLevel, ShouldAlmostEqual, want)
		}
	})
}

func TestUnreadableSound(t *testing.T) {
	Convey("Given a packed hall whose microphone reports NaN dB", t, func() {
		quiet := newEngine().Process(snapshot(t0, 40, true, 0))

		e := newEngine()
		s := snapshot(t0, 40, true, 0)
		exit := s.Readings[model.NodeC]
		exit.Sound = model.Sound{DB: math.NaN(), Valid: true}
		s.Readings[model.NodeC] = exit
		r := e.Process(s)

		Convey("Then the sound is treated as absent and the risk stands", func() {
			So(r.Components.SoundLevel, ShouldEqual, 0)
			So(math.IsNaN(r.RiskScore), ShouldBeFalse)
			So(r.RiskScore, ShouldAlmostEqual, quiet.RiskScore)
			So(r.RiskScore, ShouldAlmostEqual, 0.7867, 0.001)
			So(r.Target, ShouldEqual, model.StateSurge)
		})
	})

	Convey("Given weights applied to a NaN component", t, func() {
		w := surge.DefaultWeights()
		got := w.Apply(surge.Components{FlowImbalance: math.NaN(), ZoneBlockage: 1, SoundLevel: math.Inf(1)})

		Convey("Then only the finite part counts", func() {
			So(got, ShouldAlmostEqual, w.ZoneBlockage+w.SoundLevel)
		})
	})
}

func TestRepeatedReading(t *testing.T) {
	Convey("Given a reading that is not refreshed between two ticks", t, func() {
		e := newEngine()
		s := snapshot(t0, 40, true, 5)
		e.Process(s)
		first := e.Stats()

		s.At = tick(1)
		e.Process(s)
		second := e.Stats()

		Convey("Then its detectors count it once", func() {
			So(second.Ticks, ShouldEqual, 2)
			for i, z := range second.Zones {
				So(z.PIRTriggers, ShouldEqual, 1)
				So(z.ConfirmedHumans, ShouldEqual, first.Zones[i].ConfirmedHumans)
			}
			So(second.Devices.Updates, ShouldEqual, first.Devices.Updates)
		})
	})

	Convey("Given readings observed as they arrive", t, func() {
		e := newEngine()
		r := model.Reading{Node: model.NodeC, DistanceCM: 300, Timestamp: t0}

		Convey("Then an older or repeated reading is ignored", func() {
			So(e.Observe(r), ShouldBeTrue)
			So(e.Observe(r), ShouldBeFalse)
			older := r
			older.Timestamp = t0.Add(-time.Millisecond)
			So(e.Observe(older), ShouldBeFalse)
		})

		Convey("Then unknown nodes and unstamped readings are ignored", func() {
			So(e.Observe(model.Reading{Node: "Z", Timestamp: t0}), ShouldBeFalse)
			So(e.Observe(model.Reading{Node: model.NodeC}), ShouldBeFalse)
		})

		Convey("Then a short block between two ticks is a passage", func() {
			for i := range 20 {
				dist := 300.0
				if i >= 6 && i <= 9 {
					dist = 40
				}
				at := t0.Add(time.Duration(i+1) * 100 * time.Millisecond)
				So(e.Observe(model.Reading{Node: model.NodeC, DistanceCM: dist, Timestamp: at}), ShouldBeTrue)
				if i%5 == 4 {
					snap := model.Snapshot{At: at, Readings: map[model.NodeID]model.Reading{
						model.NodeC: {Node: model.NodeC, DistanceCM: dist, Timestamp: at},
					}}
					e.Process(snap)
				}
			}
			So(e.Stats().Passage.Count, ShouldEqual, 1)
			So(e.Last().PassageCount, ShouldEqual, 1)
		})
	})
}

func TestDeterminism(t *testing.T) {
	Convey("Given two engines with the same seed and inputs", t, func() {
		run := func() []surge.Result {
			e := newEngine()
			var out []surge.Result
			for i := range 40 {
				dist, wifi := 300.0, 2
				if i >= 10 {
					dist, wifi = 60, 12+i%3
				}
				out = append(out, e.Process(snapshot(tick(i), dist, i%2 == 0, wifi)))
			}
			return out
		}

		Convey("They produce identical result sequences", func() {
			a, b := run(), run()
			So(cmp.Diff(a, b), ShouldBeEmpty)
			So(a[len(a)-1].DeviceCount, ShouldBeGreaterThan, 0)
		})
	})
}

func TestHistory(t *testing.T) {
	Convey("Given a rising then steady risk", t, func() {
		e := newEngine()
		for i := range 10 {
			e.Process(snapshot(tick(i), 300, false, 0))
		}
		So(e.Trend(), ShouldEqual, surge.TrendUnknown)
		for i := 10; i < 20; i++ {
			e.Process(snapshot(tick(i), 40, true, 0))
		}

		Convey("The trend is rising and the statistics track the peak", func() {
			So(e.Trend(), ShouldEqual, surge.TrendRising)
			So(e.RiskHistory(5), ShouldHaveLength, 5)
			So(e.RiskHistory(0), ShouldHaveLength, 20)
			st := e.Stats()
			So(st.Ticks, ShouldEqual, 20)
			So(st.PeakRisk, ShouldAlmostEqual, 0.7867, 0.001)
			So(st.AverageRisk, ShouldAlmostEqual, st.PeakRisk/2, 0.001)
			So(st.Zones, ShouldHaveLength, 3)
			So(st.Passage.Approaches, ShouldEqual, 1)
		})
	})
}
