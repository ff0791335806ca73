package passage_test

import (
	"errors"
	"testing"
	"time"

	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/passage"
	. "github.com/smartystreets/goconvey/convey"
)

const step = 100 * time.Millisecond

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// feed pushes distances 100ms apart starting at start and returns every result.
func feed(d *passage.Detector, start time.Time, distances ...float64) []passage.Result {
	out := make([]passage.Result, len(distances))
	for i, dist := range distances {
		out[i] = d.ProcessReading(dist, start.Add(time.Duration(i)*step))
	}
	return out
}

// cycle is one person walking through the door: 2s of readings ending in BASELINE.
func cycle() []float64 {
	seq := []float64{300, 100, 40, 40, 40}
	for i := 0; i < 6; i++ {
		seq = append(seq, 200)
	}
	for i := 0; i < 9; i++ {
		seq = append(seq, 300)
	}
	return seq
}

func newDetector() *passage.Detector {
	d, err := passage.NewDetector(passage.DefaultConfig())
	So(err, ShouldBeNil)
	return d
}

func TestPassageDetector(t *testing.T) {
	Convey("Given a passage detector with default thresholds", t, func() {
		d := newDetector()

		Convey("When distances never drop below the passage threshold", func() {
			seq := []float64{300, 140, 60, 51, 120, 80, 55, 300, 70, 400, 52, 90}
			for i := 0; i < 5; i++ {
				feed(d, epoch.Add(time.Duration(i)*2*time.Second), seq...)
			}

			Convey("Then the counter never increments", func() {
				So(d.Count(), ShouldEqual, 0)
			})
		})

		Convey("When a single sustained dip passes through the door", func() {
			seq := []float64{300, 100, 40, 40, 40, 40}
			for i := 0; i < 6; i++ {
				seq = append(seq, 200)
			}
			// a second dip during cooldown must be ignored
			seq = append(seq, 40, 40, 40, 40, 40)
			for i := 0; i < 10; i++ {
				seq = append(seq, 300)
			}
			results := feed(d, epoch, seq...)

			passages, cooldowns := 0, 0
			prev := passage.StateBaseline
			for _, r := range results {
				if r.Event == passage.EventPassage {
					passages++
					So(r.Passage, ShouldNotBeNil)
					So(r.Passage.Seq, ShouldEqual, 1)
				}
				if r.State == passage.StateCooldown && prev != passage.StateCooldown {
					cooldowns++
				}
				prev = r.State
			}

			Convey("Then exactly one passage and one cooldown occur", func() {
				So(passages, ShouldEqual, 1)
				So(cooldowns, ShouldEqual, 1)
				So(d.Count(), ShouldEqual, 1)
				So(d.State(), ShouldEqual, passage.StateBaseline)
			})

			Convey("And the passage is confirmed after the minimum duration", func() {
				So(results[3].Event, ShouldEqual, passage.EventNone)
				So(results[4].Event, ShouldEqual, passage.EventPassage)
				So(results[4].State, ShouldEqual, passage.StatePassage)
			})

			Convey("And the flow rate reflects one passage per minute", func() {
				So(d.FlowRate(), ShouldEqual, 1.0)
			})
		})

		Convey("When the distance only flickers below the passage threshold", func() {
			feed(d, epoch, 300, 100, 40, 100, 40, 100, 40, 100, 40, 100)

			Convey("Then nothing is counted", func() {
				So(d.Count(), ShouldEqual, 0)
				So(d.State(), ShouldEqual, passage.StateApproach)
			})
		})

		Convey("When someone approaches and walks away", func() {
			results := feed(d, epoch, 300, 100, 120, 300, 300, 300, 300, 300, 300)

			Convey("Then the approach is recorded as false", func() {
				So(results[1].Event, ShouldEqual, passage.EventApproach)
				So(results[8].Event, ShouldEqual, passage.EventClear)
				stats := d.Stats()
				So(stats.Approaches, ShouldEqual, 1)
				So(stats.FalseApproaches, ShouldEqual, 1)
				So(stats.Count, ShouldEqual, 0)
				So(stats.ConversionRate, ShouldEqual, 0)
				So(stats.MinDistanceCM, ShouldEqual, 100)
			})
		})

		Convey("When several people pass over a few seconds", func() {
			for i := 0; i < 4; i++ {
				feed(d, epoch.Add(time.Duration(i)*2*time.Second), cycle()...)
			}

			Convey("Then each one is counted and the flow is accelerating", func() {
				So(d.Count(), ShouldEqual, 4)
				So(d.Stats().ConversionRate, ShouldEqual, 1.0)
				So(d.FlowRateOver(30*time.Second), ShouldEqual, 8.0)
				So(d.Velocity(), ShouldBeGreaterThan, 0)
			})

			Convey("And Reset clears everything", func() {
				d.Reset()
				So(d.Count(), ShouldEqual, 0)
				So(d.FlowRate(), ShouldEqual, 0)
				So(d.Velocity(), ShouldEqual, 0)
			})
		})

		Convey("When readings are malformed", func() {
			results := feed(d, epoch, -10, -10, -10, -10)

			Convey("Then they are clamped instead of rejected", func() {
				So(results[0].Event, ShouldEqual, passage.EventApproach)
				So(d.Count(), ShouldEqual, 1)
			})
		})
	})
}

func TestPassageConfig(t *testing.T) {
	Convey("Given passage configurations", t, func() {
		Convey("When the passage threshold is not below presence", func() {
			cfg := passage.DefaultConfig()
			cfg.PassageCM = cfg.PresenceCM
			_, err := passage.NewDetector(cfg)
			So(errors.Is(err, model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the minimum passage duration is zero", func() {
			cfg := passage.DefaultConfig()
			cfg.MinPassage = 0
			_, err := passage.NewDetector(cfg)
			So(errors.Is(err, model.ErrInvalidConfig), ShouldBeTrue)
		})

		Convey("When the defaults are used", func() {
			So(passage.DefaultConfig().Validate(), ShouldBeNil)
		})
	})
}
