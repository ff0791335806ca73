package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/YashwanthDevelops/StampadeShield/internal/config"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestMainWiring(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		ctx := context.Background()

		convey.Convey("When configuration comes from the environment", func() {
			t.Setenv("SHIELD_ADDR", ":9090")
			t.Setenv("SHIELD_QUEUE_SIZE", "64")
			t.Setenv("SHIELD_COMMANDS__ENABLED", "false")

			cfg, err := config.Load(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.Commands.Enabled, convey.ShouldBeFalse)
		})

		convey.Convey("When the service is built from defaults", func() {
			cfg := config.New()
			cfg.Commands.Enabled = false
			svc, closers, err := buildService(ctx, cfg)
			defer closeAll(closers)

			convey.So(err, convey.ShouldBeNil)
			convey.So(closers, convey.ShouldBeEmpty)
			convey.So(svc.Stats().Alerts.Handlers, convey.ShouldResemble, []string{"console"})
		})

		convey.Convey("When a door commander and publishers are configured", func() {
			cfg := config.New()
			cfg.Commands.Address = "127.0.0.1:5006"
			cfg.NATS.URL = "nats://127.0.0.1:1"
			cfg.NATS.Timeout = 200 * time.Millisecond
			cfg.NATS.MaxReconnects = 0
			cfg.Kafka.Brokers = "127.0.0.1:1"

			svc, closers, err := buildService(ctx, cfg)
			defer closeAll(closers)

			convey.So(err, convey.ShouldBeNil)
			handlers := svc.Stats().Alerts.Handlers
			convey.So(handlers, convey.ShouldContain, "kafka")
			convey.So(handlers, convey.ShouldContain, "buzzer")
			convey.Convey("Then an unreachable NATS server is skipped", func() {
				convey.So(handlers, convey.ShouldNotContain, "nats")
				convey.So(len(closers), convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the HTTP handler is built", func() {
			cfg := config.New()
			cfg.Commands.Enabled = false
			svc, closers, err := buildService(ctx, cfg)
			defer closeAll(closers)
			convey.So(err, convey.ShouldBeNil)
			h := newHTTPHandler(ctx, svc)

			convey.Convey("Then the API answers", func() {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Header().Get("Content-Type"), convey.ShouldContainSubstring, "application/json")
			})

			convey.Convey("Then health reports not ready before Start", func() {
				rec := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
				req.Header.Set("Accept", "application/json")
				h.ServeHTTP(rec, req)
				convey.So(rec.Code, convey.ShouldEqual, http.StatusServiceUnavailable)
			})

			convey.Convey("Then cross-origin requests get CORS headers", func() {
				rec := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/api/zones", nil)
				req.Header.Set("Origin", "http://dashboard.local")
				h.ServeHTTP(rec, req)
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(rec.Header().Get("Access-Control-Allow-Origin"), convey.ShouldEqual, "*")
			})

			convey.Convey("Then the API docs are served", func() {
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger/openapi.yaml", nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		})

		convey.Convey("When system metrics are refreshed", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})
	})
}
