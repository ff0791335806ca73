package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/YashwanthDevelops/StampadeShield/internal/simulation"
	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

func main() {
	var (
		target    = flag.String("target", simulation.DefaultTarget, "host:port of the ingestion listener")
		scenario  = flag.String("scenario", simulation.DefaultScenario, "scenario to replay")
		rate      = flag.Duration("rate", simulation.DefaultRate, "pause between rounds")
		rounds    = flag.Int("rounds", 0, "rounds to send, 0 for the whole scenario")
		seed      = flag.Int64("seed", simulation.DefaultSeed, "random seed")
		logFile   = flag.String("log", "", "also write logs to this file")
		logFormat = flag.String("log-format", logger.FormatText, "log format: json or text")
		verbose   = flag.Bool("verbose", false, "log every datagram")
		help      = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		simulation.ShowHelp(os.Stdout)
		return
	}

	closeLog, err := simulation.SetupLogging(*logFile, *logFormat, *verbose)
	if err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = simulation.Run(ctx, simulation.Config{
		Target:   *target,
		Scenario: *scenario,
		Rate:     *rate,
		Rounds:   *rounds,
		Seed:     *seed,
		Verbose:  *verbose,
	})
	if err != nil && ctx.Err() == nil {
		logger.Get().Error(ctx, "simulation failed", logger.Error(err))
		stop()
		_ = closeLog()
		os.Exit(1)
	}
}
