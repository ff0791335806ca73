package simulation

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/YashwanthDevelops/StampadeShield/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger. With a log file, output goes
// to stdout and the file; the returned func closes the file.
func SetupLogging(logFile, format string, verbose bool) (func() error, error) {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(w)); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage to w.
func ShowHelp(w io.Writer) {
	fmt.Fprintf(w, `Stampede Shield node simulator
==============================

Sends sensing-node datagrams to the shield service's UDP port.

Usage:
  go run ./cmd/simulator [options]

Options:
  -target string     host:port of the ingestion listener (default %q)
  -scenario string   one of: %s (default %q)
  -rate duration     pause between rounds (default %s)
  -rounds int        rounds to send, 0 for the whole scenario
  -seed int          random seed (default %d)
  -log string        also write logs to this file
  -log-format string json or text (default "text")
  -verbose           log every datagram
  -help              show this help

Examples:
  go run ./cmd/simulator -scenario surge
  go run ./cmd/simulator -scenario busy -rate 50ms -seed 7
`, DefaultTarget, strings.Join(Names(), ", "), DefaultScenario, DefaultRate, DefaultSeed)
}
