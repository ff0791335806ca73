package simulation_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/internal/simulation"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

// captureWriter keeps every Write as one datagram.
type captureWriter struct {
	mu    sync.Mutex
	grams [][]byte
	fail  bool
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.fail {
		return 0, errors.New("network down")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.grams = append(w.grams, bytes.Clone(p))
	return len(p), nil
}

func stepClock() func() time.Time {
	t := time.Unix(1700000000, 0)
	return func() time.Time {
		t = t.Add(100 * time.Millisecond)
		return t
	}
}

func TestScenarios(t *testing.T) {
	Convey("Given the built-in scenarios", t, func() {
		Convey("Names are sorted and all resolvable", func() {
			So(simulation.Names(), ShouldResemble, []string{"busy", "normal", "surge"})
			for _, n := range simulation.Names() {
				_, err := simulation.Lookup(n)
				So(err, ShouldBeNil)
			}
		})

		Convey("Lookup ignores case and rejects unknown names", func() {
			s, err := simulation.Lookup(" SURGE ")
			So(err, ShouldBeNil)
			So(s.Name, ShouldEqual, simulation.ScenarioSurge)

			_, err = simulation.Lookup("riot")
			So(errors.Is(err, simulation.ErrUnknownScenario), ShouldBeTrue)
		})

		Convey("The surge scenario walks calm, busy, packed", func() {
			s, _ := simulation.Lookup(simulation.ScenarioSurge)
			So(s.Rounds(), ShouldEqual, 600)
			So(s.ProfileAt(0).Name, ShouldEqual, "calm")
			So(s.ProfileAt(100).Name, ShouldEqual, "busy")
			So(s.ProfileAt(250).Name, ShouldEqual, "packed")
			So(s.ProfileAt(10_000).Name, ShouldEqual, "packed")
		})
	})
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		at := time.Unix(1700000000, 0)

		Convey("Only the microphone node reports sound", func() {
			g := simulation.NewGenerator(1, simulation.DefaultNodes)
			grams := g.Next(simulation.ProfileCalm, at)
			So(len(grams), ShouldEqual, 3)
			So(grams[0].DB, ShouldBeNil)
			So(grams[1].DB, ShouldBeNil)
			So(grams[2].DB, ShouldNotBeNil)
		})

		Convey("The same seed gives the same readings", func() {
			run := func() [][]simulation.Datagram {
				g := simulation.NewGenerator(7, simulation.DefaultNodes)
				var out [][]simulation.Datagram
				for i := range 20 {
					out = append(out, g.Next(simulation.ProfileBusy, at.Add(time.Duration(i)*100*time.Millisecond)))
				}
				return out
			}
			So(cmp.Diff(run(), run()), ShouldBeEmpty)
		})

		Convey("A packed profile pulls distances down and keeps them in range", func() {
			g := simulation.NewGenerator(3, simulation.DefaultNodes)
			var tail []float64
			for i := range 100 {
				for _, d := range g.Next(simulation.ProfilePacked, at.Add(time.Duration(i)*100*time.Millisecond)) {
					So(d.Dist, ShouldBeBetweenOrEqual, 10, 400)
					if i >= 90 {
						tail = append(tail, d.Dist)
					}
				}
			}
			sum := 0.0
			for _, v := range tail {
				sum += v
			}
			So(sum/float64(len(tail)), ShouldBeLessThan, 60)
		})

		Convey("Uptime counts from the first round", func() {
			g := simulation.NewGenerator(1, simulation.DefaultNodes)
			first := g.Next(simulation.ProfileCalm, at)
			second := g.Next(simulation.ProfileCalm, at.Add(250*time.Millisecond))
			So(first[0].Uptime, ShouldEqual, int64(0))
			So(second[0].Uptime, ShouldEqual, int64(250))
			So(second[0].Timestamp, ShouldEqual, at.Add(250*time.Millisecond).UnixMilli())
		})
	})
}

func TestRunner(t *testing.T) {
	Convey("Given a runner writing to memory", t, func() {
		ctx := context.Background()
		w := &captureWriter{}
		cfg := simulation.Config{Scenario: "surge", Rate: time.Millisecond, Rounds: 5, Seed: 42}

		Convey("It sends one datagram per node per round", func() {
			r, err := simulation.NewRunner(cfg, w, simulation.WithClock(stepClock()), simulation.WithRunID("run-1"))
			So(err, ShouldBeNil)
			So(r.RunID(), ShouldEqual, "run-1")

			stats, err := r.Run(ctx)
			So(err, ShouldBeNil)
			So(stats.Rounds, ShouldEqual, 5)
			So(stats.Sent, ShouldEqual, 15)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.RunID, ShouldEqual, "run-1")
			So(len(w.grams), ShouldEqual, 15)

			Convey("And the service decoder accepts every datagram", func() {
				dec := udp.NewDecoder([]model.NodeID{model.NodeA, model.NodeB, model.NodeC})
				keys := map[string]bool{}
				for _, g := range w.grams {
					msg, err := dec.Decode(g, time.Now())
					So(err, ShouldBeNil)
					So(msg.Key, ShouldNotBeEmpty)
					keys[msg.Key] = true
				}
				So(len(keys), ShouldEqual, 15)
			})

			Convey("And the wire names match the node firmware", func() {
				var m map[string]any
				So(json.Unmarshal(w.grams[2], &m), ShouldBeNil)
				for _, k := range []string{"node", "dist", "pir", "wifi_count", "db", "uptime", "timestamp"} {
					So(m, ShouldContainKey, k)
				}
			})
		})

		Convey("Write failures are counted, not fatal", func() {
			w.fail = true
			r, err := simulation.NewRunner(cfg, w, simulation.WithClock(stepClock()))
			So(err, ShouldBeNil)
			stats, err := r.Run(ctx)
			So(err, ShouldBeNil)
			So(stats.Failed, ShouldEqual, 15)
			So(stats.Sent, ShouldEqual, 0)
		})

		Convey("A cancelled context stops the run early", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			cfg.Rounds = 100
			cfg.Rate = time.Hour
			r, _ := simulation.NewRunner(cfg, w)
			stats, err := r.Run(cctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(stats.Rounds, ShouldEqual, 1)
		})

		Convey("Bad settings are rejected", func() {
			_, err := simulation.NewRunner(simulation.Config{Scenario: "nope"}, w)
			So(errors.Is(err, simulation.ErrUnknownScenario), ShouldBeTrue)

			_, err = simulation.NewRunner(simulation.Config{Scenario: "normal", Nodes: []simulation.Node{}}, w)
			So(errors.Is(err, simulation.ErrNoNodes), ShouldBeTrue)

			_, err = simulation.Run(ctx, simulation.Config{Scenario: "normal"})
			So(errors.Is(err, simulation.ErrNoTarget), ShouldBeTrue)
		})
	})
}

func TestRunOverUDP(t *testing.T) {
	Convey("Given a UDP socket on loopback", t, func() {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Run delivers the scenario to it", func() {
			stats, err := simulation.Run(context.Background(), simulation.Config{
				Target:   conn.LocalAddr().String(),
				Scenario: "normal",
				Rate:     time.Millisecond,
				Rounds:   2,
			})
			So(err, ShouldBeNil)
			So(stats.Sent, ShouldEqual, 6)

			buf := make([]byte, 2048)
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, _, err := conn.ReadFromUDP(buf)
			So(err, ShouldBeNil)
			var d simulation.Datagram
			So(json.Unmarshal(buf[:n], &d), ShouldBeNil)
			So(d.Node, ShouldEqual, "A")
		})
	})
}
