package main

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/handlers"

	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/http/api"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/http/swagger"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/notify"
	"github.com/YashwanthDevelops/StampadeShield/internal/adapters/udp"
	service "github.com/YashwanthDevelops/StampadeShield/internal/app"
	"github.com/YashwanthDevelops/StampadeShield/internal/config"
	"github.com/YashwanthDevelops/StampadeShield/internal/domain/surge"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
	"github.com/YashwanthDevelops/StampadeShield/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> .env -> optional YAML file -> SHIELD_ env
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "shield stopped with error", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	svc, closers, err := buildService(ctx, cfg)
	defer closeAll(closers)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)

	if cfg.UDP.Addr != "" {
		listener := udp.NewListener(cfg.ListenerConfig(svc, log.Named("udp")))
		if err := listener.Listen(); err != nil {
			return err
		}
		go func() {
			if err := listener.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "udp listener failed", logger.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHTTPHandler(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// buildService wires the door commander, the alert publishers and the
// service. The returned closers must be closed even when err is not nil.
func buildService(ctx context.Context, cfg *config.Config) (*service.Service, []io.Closer, error) {
	log := logger.Get()
	var closers []io.Closer

	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithTickInterval(cfg.TickInterval),
		service.WithNodeTimeout(cfg.NodeTimeout),
		service.WithQueueSize(cfg.QueueSize),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithSurgeConfig(cfg.Surge),
		service.WithAlertConfig(cfg.Alert),
		service.WithEngineOptions(
			surge.WithPassageConfig(cfg.Passage),
			surge.WithZoneConfig(cfg.Zone),
			surge.WithDeviceConfig(cfg.Device),
			surge.WithClusterConfig(cfg.Cluster),
			surge.WithRand(rand.New(rand.NewSource(cfg.Seed))), //nolint:gosec // synthetic positions only
			surge.WithLogger(log.Named("surge")),
		),
	}

	if cfg.Commands.Enabled {
		door, err := udp.NewCommander(cfg.CommanderConfig(log.Named("commander")))
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, door)
		opts = append(opts, service.WithDoor(door))
	}

	if cfg.NATSEnabled() {
		pub, err := notify.NewNATSPublisher(cfg.NATSPublisherConfig(log.Named("nats")))
		if err != nil {
			// The broker may come up later; alerts still reach the other handlers.
			log.Warn(ctx, "nats publisher disabled", logger.Error(err))
		} else {
			closers = append(closers, pub)
			opts = append(opts, service.WithAlertHandler("nats", pub))
		}
	}

	if len(cfg.KafkaBrokers()) > 0 {
		pub, err := notify.NewKafkaPublisher(cfg.KafkaPublisherConfig(log.Named("kafka")))
		if err != nil {
			return nil, closers, err
		}
		closers = append(closers, pub)
		opts = append(opts, service.WithAlertHandler("kafka", pub))
	}

	svc, err := service.New(cfg.Site, opts...)
	if err != nil {
		return nil, closers, err
	}
	return svc, closers, nil
}

// newHTTPHandler registers the API and docs and adds CORS and panic recovery.
func newHTTPHandler(ctx context.Context, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	apiServer := api.NewServer(svc, api.StatsFunc(func() any { return svc.Stats() }), svc.Ready)
	apiServer.Register(ctx, mux)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept"}),
	)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(mux))
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Get().Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
}

// startSystemMetricsUpdater refreshes the process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
