package udp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/model"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var received = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func TestDecoder(t *testing.T) {
	Convey("Given a decoder for the default nodes", t, func() {
		d := udp.NewDecoder(model.DefaultSite().IDs())

		Convey("A full datagram decodes into a reading", func() {
			m, err := d.Decode([]byte(`{"node":"C","dist":42.5,"pir":1,"wifi_count":7,"db":71.2,"rssi":-60,"uptime":1200,"timestamp":99,"status":"warning"}`), received)
			So(err, ShouldBeNil)
			r := m.Reading
			So(r.Node, ShouldEqual, model.NodeC)
			So(r.DistanceCM, ShouldEqual, 42.5)
			So(r.Motion, ShouldBeTrue)
			So(r.WiFiCount, ShouldEqual, 7)
			So(r.Sound, ShouldResemble, model.Sound{DB: 71.2, Valid: true})
			So(r.RSSI, ShouldEqual, -60)
			So(r.Timestamp, ShouldEqual, received)
			So(m.Key, ShouldEqual, "C|1200|99")
			So(m.Status, ShouldEqual, "warning")
		})

		Convey("Alternate field names and formats are accepted", func() {
			m, err := d.Decode([]byte(` {"id":"node_a","distance":500,"pir":true} `), received)
			So(err, ShouldBeNil)
			So(m.Reading.Node, ShouldEqual, model.NodeA)
			So(m.Reading.DistanceCM, ShouldEqual, model.MaxDistanceCM)
			So(m.Reading.Motion, ShouldBeTrue)
			So(m.Reading.Sound.Valid, ShouldBeFalse)
			So(m.Key, ShouldBeEmpty)

			m, err = d.Decode([]byte(`{"node":"b","dist":0,"pir":"0","wifi_count":-3}`), received)
			So(err, ShouldBeNil)
			So(m.Reading.Motion, ShouldBeFalse)
			So(m.Reading.WiFiCount, ShouldEqual, 0)
		})

		Convey("Bad datagrams are rejected with a kind", func() {
			_, err := d.Decode([]byte(`not json`), received)
			So(errors.Is(err, udp.ErrMalformed), ShouldBeTrue)
			_, err = d.Decode([]byte(`{"dist":10}`), received)
			So(errors.Is(err, udp.ErrMissingNode), ShouldBeTrue)
			_, err = d.Decode([]byte(`{"node":"Q","dist":10}`), received)
			So(errors.Is(err, model.ErrUnknownNode), ShouldBeTrue)
			_, err = d.Decode([]byte(`{"node":"A","pir":1}`), received)
			So(errors.Is(err, udp.ErrMissingDistance), ShouldBeTrue)
			_, err = d.Decode([]byte(`{"node":"A","dist":5,"pir":"maybe"}`), received)
			So(errors.Is(err, udp.ErrMalformed), ShouldBeTrue)
		})
	})
}

func TestListener(t *testing.T) {
	Convey("Given a listener on a loopback port", t, func() {
		var (
			mu   sync.Mutex
			got  []string
			from []*net.UDPAddr
		)
		h := udp.HandlerFunc(func(_ context.Context, data []byte, addr *net.UDPAddr) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, string(data))
			from = append(from, addr)
		})
		l := udp.NewListener(udp.ListenerConfig{Address: "127.0.0.1:0", Handler: h, ReadTimeout: 20 * time.Millisecond})
		So(l.Listen(), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- l.Serve(ctx) }()

		conn, err := net.Dial("udp", l.LocalAddr().String())
		So(err, ShouldBeNil)
		defer conn.Close()
		_, err = conn.Write([]byte(`{"node":"A","dist":120}`))
		So(err, ShouldBeNil)

		Convey("Datagrams reach the handler and cancellation stops the loop", func() {
			deadline := time.Now().Add(2 * time.Second)
			for time.Now().Before(deadline) {
				mu.Lock()
				n := len(got)
				mu.Unlock()
				if n > 0 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
			mu.Lock()
			So(got, ShouldResemble, []string{`{"node":"A","dist":120}`})
			So(from[0].IP.IsLoopback(), ShouldBeTrue)
			mu.Unlock()

			cancel()
			select {
			case err := <-done:
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			case <-time.After(2 * time.Second):
				So("listener did not stop", ShouldBeEmpty)
			}
			So(l.LocalAddr(), ShouldBeNil)
		})
		Reset(cancel)
	})
}

func TestCommander(t *testing.T) {
	Convey("Given a fake door node", t, func() {
		door, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		So(err, ShouldBeNil)
		defer door.Close()
		doorAddr := door.LocalAddr().(*net.UDPAddr)

		read := func() udp.Command {
			buf := make([]byte, 256)
			_ = door.SetReadDeadline(time.Now().Add(2 * time.Second))
			n, _, err := door.ReadFromUDP(buf)
			So(err, ShouldBeNil)
			var c udp.Command
			So(json.Unmarshal(buf[:n], &c), ShouldBeNil)
			return c
		}

		Convey("A commander without a target refuses to send", func() {
			c, err := udp.NewCommander(udp.CommanderConfig{Port: doorAddr.Port})
			So(err, ShouldBeNil)
			defer c.Close()
			So(errors.Is(c.Buzz(context.Background(), model.LevelCritical), udp.ErrNoTarget), ShouldBeTrue)
			So(c.Target(), ShouldBeEmpty)

			Convey("Until it learns the door node's IP", func() {
				c.Learn(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000})
				So(c.Target(), ShouldEqual, doorAddr.String())
				So(c.SetState(context.Background(), model.StateSurge), ShouldBeNil)
				So(read(), ShouldResemble, udp.Command{Cmd: udp.CommandSetState, State: "SURGE"})
			})
		})

		Convey("A pinned address ignores learned ones", func() {
			c, err := udp.NewCommander(udp.CommanderConfig{Address: doorAddr.String()})
			So(err, ShouldBeNil)
			defer c.Close()
			c.Learn(&net.UDPAddr{IP: net.IPv4(10, 0, 0, 9), Port: 1})
			So(c.Target(), ShouldEqual, doorAddr.String())
			So(c.Buzz(context.Background(), model.LevelEmergency), ShouldBeNil)
			So(read(), ShouldResemble, udp.Command{Cmd: udp.CommandBuzz, Level: "EMERGENCY"})
		})

		Convey("A closed commander fails", func() {
			c, err := udp.NewCommander(udp.CommanderConfig{Address: doorAddr.String()})
			So(err, ShouldBeNil)
			So(c.Close(), ShouldBeNil)
			So(c.Buzz(context.Background(), model.LevelCritical), ShouldNotBeNil)
		})
	})
}
