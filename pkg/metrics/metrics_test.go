package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func value(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	if out.Gauge != nil {
		return out.GetGauge().GetValue()
	}
	return out.GetCounter().GetValue()
}

func TestManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"site": "hall-a"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then every instrument is registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.riskScore.Set(0.5)
				m.readingsDuplicate.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				for _, f := range families {
					So(strings.HasPrefix(f.GetName(), "test_unit_"), ShouldBeTrue)
				}
			})
		})

		Convey("Empty options keep the defaults", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))
			So(m.namespace, ShouldEqual, "shield")
			So(m.subsystem, ShouldEqual, "core")
			So(m.histogramBuckets, ShouldNotBeEmpty)
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Engine gauges hold the last value", func() {
			UpdateRiskScore(0.42)
			So(value(globalManager.riskScore), ShouldEqual, 0.42)
			UpdateSystemState(3)
			So(value(globalManager.systemState), ShouldEqual, 3)
			UpdatePassages(7, 2.5)
			So(value(globalManager.passageTotal), ShouldEqual, 7)
			So(value(globalManager.flowRate), ShouldEqual, 2.5)
		})

		Convey("Labelled counters count per label", func() {
			before := value(globalManager.alertsSuppressed.WithLabelValues("CRITICAL", "cooldown"))
			RecordAlertSuppressed("CRITICAL", "cooldown")
			RecordAlertSuppressed("CRITICAL", "cooldown")
			So(value(globalManager.alertsSuppressed.WithLabelValues("CRITICAL", "cooldown")), ShouldEqual, before+2)
		})

		Convey("Node liveness toggles between 0 and 1", func() {
			UpdateNodeOnline("A", true)
			So(value(globalManager.nodeOnline.WithLabelValues("A")), ShouldEqual, 1)
			UpdateNodeOnline("A", false)
			So(value(globalManager.nodeOnline.WithLabelValues("A")), ShouldEqual, 0)
		})

		Convey("Recording functions never panic", func() {
			So(func() {
				RecordReadingReceived("udp")
				RecordReadingAccepted("B")
				RecordReadingRejected("malformed")
				RecordReadingDuplicate()
				UpdateQueueSize(3)
				UpdateQueueCapacity(100)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.3)
				UpdateWorkerCount(2)
				RecordWorkerProcessingLatency(0.1)
				RecordWorkerError()
				UpdateNodeAge("C", 1.5)
				UpdateRiskComponent("sound_level", 0.2)
				RecordStateTransition("CLEAR", "NORMAL")
				UpdateZoneState("A", 2)
				UpdateDeviceCount(18)
				UpdateClusterCount(1)
				RecordTickDuration(0.8)
				RecordAlertEmitted("WARNING")
				RecordAlertHandlerError("buzzer")
				RecordCommand("BUZZ", "sent")
				RecordPublish("nats", "ok")
				RecordHTTPRequest("/api/state", "GET", "200")
				RecordHTTPRequestDuration("/api/state", "GET", "200", 1.2)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
		})

		Convey("The registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
