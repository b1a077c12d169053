package replay

import (
	"fmt"
	"os"

	"github.com/okian/pitwall/pkg/logger"
)

// SetupLogging initializes the global logger for the replay tool.
func SetupLogging(format string, verbose bool) error {
	if err := logger.SetFormat(format); err != nil {
		return err
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Pitwall Race Replay
===================

Replays synthetic races against a running prediction service and verifies
recorded history, idempotency, derived pit stops and story composition.

Usage:
  go run ./cmd/replay [options]

Options:
  -url string        Base URL of the service (default "http://localhost:8000")
  -sessions int      Number of race sessions (default 4)
  -laps int          Laps per session (default 20)
  -pit-lap int       Lap on which cars switch MEDIUM -> HARD, 0 disables (default 12)
  -workers int       Sessions replayed concurrently (default CPU cores)
  -timeout duration  HTTP request timeout (default 30s)
  -seed uint         Telemetry generator seed (default 1)
  -output string     Write the JSON report to this file
  -log-format string text or json (default "text")
  -verbose           Log every submission
  -help              Show this help message

Examples:
  go run ./cmd/replay -sessions 10 -laps 50 -pit-lap 25
  go run ./cmd/replay -url http://localhost:9000 -output reports/replay.json
`)
}
