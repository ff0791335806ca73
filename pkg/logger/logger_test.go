package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("Entries are JSON with typed fields and the caller", func() {
			Get().Named("surge").Info(context.Background(), "state changed",
				String("to", "SURGE"),
				Int("zones", 3),
				Int64("uptime", 42),
				Float64("risk", 0.79),
				Bool("broadcast", true),
				Duration("delay", 3*time.Second))

			var entry map[string]any
			So(json.Unmarshal(buf.Bytes(), &entry), ShouldBeNil)
			So(entry["msg"], ShouldEqual, "state changed")
			So(entry["component"], ShouldEqual, "surge")
			So(entry["to"], ShouldEqual, "SURGE")
			So(entry["broadcast"], ShouldEqual, true)
			So(entry["risk"], ShouldEqual, 0.79)
			So(entry["source"], ShouldContainSubstring, "logger_test.go")
		})

		Convey("Debug is dropped at the default level", func() {
			Get().Debug(context.Background(), "hidden")
			So(buf.Len(), ShouldEqual, 0)

			So(SetLevelString("debug"), ShouldBeNil)
			Get().Debug(context.Background(), "shown")
			So(buf.String(), ShouldContainSubstring, "shown")
		})
	})

	Convey("Given the text format", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("TEXT"), WithWriter(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Named("udp").Warn(context.Background(), "bad datagram", Error(context.Canceled))
		So(buf.String(), ShouldContainSubstring, "level=WARN")
		So(buf.String(), ShouldContainSubstring, "component=udp")
		So(strings.HasPrefix(buf.String(), "{"), ShouldBeFalse)
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		_ = Init()
		for _, l := range []string{"debug", "INFO", "", "warn", "Warning", "error"} {
			So(SetLevelString(l), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}
