package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/pitwall/internal/replay"
)

// Default configuration constants.
const (
	defaultSessions    = 4
	defaultLaps        = 20
	defaultPitLap      = 12
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:8000", "Base URL of the service")
		sessions  = flag.Int("sessions", defaultSessions, "Number of race sessions")
		laps      = flag.Int("laps", defaultLaps, "Laps per session")
		pitLap    = flag.Int("pit-lap", defaultPitLap, "Lap on which cars switch compound (0 disables)")
		workers   = flag.Int("workers", runtime.NumCPU(), "Sessions replayed concurrently")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed      = flag.Uint64("seed", 1, "Telemetry generator seed")
		output    = flag.String("output", "", "Write the JSON report to this file")
		logFormat = flag.String("log-format", "text", "Log format: text or json")
		verbose   = flag.Bool("verbose", false, "Log every submission")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	if err := replay.SetupLogging(*logFormat, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	report, err := replay.Run(ctx, &replay.Config{
		BaseURL:    *baseURL,
		Sessions:   *sessions,
		Laps:       *laps,
		PitLap:     *pitLap,
		Workers:    *workers,
		Timeout:    *timeout,
		Seed:       *seed,
		OutputFile: *output,
		Verbose:    *verbose,
	})
	if err != nil {
		os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if report.Problems() > 0 {
		os.Exit(2)
	}
}
