package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/pitwall/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	reportPermission    = 0o600
)

// Run replays cfg.Sessions races against the service and verifies what it recorded.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	log := logger.Get().Named("replay")
	report := &Report{BaseURL: cfg.BaseURL, Started: time.Now()}

	log.Info(ctx, "starting replay",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("laps", cfg.Laps),
		logger.Int("pitLap", cfg.PitLap),
		logger.Int("workers", cfg.Workers))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	report.Sessions = make([]SessionReport, cfg.Sessions)
	jobs := make(chan int, cfg.Workers)
	var wg sync.WaitGroup
	for w := 0; w < max(1, cfg.Workers); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Sessions[i] = replaySession(ctx, client, cfg, i+1, log)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Sessions; i++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	report.Duration = time.Since(report.Started)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("replay interrupted: %w", err)
	}
	if cfg.OutputFile != "" {
		if err := saveReport(cfg.OutputFile, report); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	displayReport(ctx, log, report)
	return report, nil
}

func replaySession(ctx context.Context, client *Client, cfg *Config, vehicleID int, log logger.Logger) SessionReport {
	rep := SessionReport{VehicleID: vehicleID}
	id, err := client.CreateSession(ctx, vehicleID, fmt.Sprintf("Replay %d", vehicleID))
	if err != nil {
		rep.Problems = append(rep.Problems, "create session: "+err.Error())
		return rep
	}
	rep.SessionID = id

	laps := NewGenerator(cfg.Seed, vehicleID, cfg.PitLap).Laps(cfg.Laps)
	var firstKey string
	for _, lap := range laps {
		key := uuid.NewString()
		if firstKey == "" {
			firstKey = key
		}
		rep.Submitted++
		if _, err := client.Submit(ctx, id, vehicleID, lap, key); err != nil {
			rep.Failed++
			log.Warn(ctx, "submission failed", logger.String("session_id", id), logger.Int("lap", lap.Number), logger.Error(err))
			continue
		}
		if cfg.Verbose {
			log.Debug(ctx, "lap submitted", logger.String("session_id", id), logger.Int("lap", lap.Number), logger.String("compound", lap.Compound))
		}
	}

	// Replaying the first request must be absorbed by the idempotency cache.
	if len(laps) > 0 {
		dup, err := client.Submit(ctx, id, vehicleID, laps[0], firstKey)
		switch {
		case err != nil:
			rep.Problems = append(rep.Problems, "duplicate submission: "+err.Error())
		case dup:
			rep.Duplicates++
		default:
			rep.Problems = append(rep.Problems, "repeated idempotency key was recorded twice")
		}
	}

	recorded, err := client.Predictions(ctx, id)
	if err != nil {
		rep.Problems = append(rep.Problems, "list predictions: "+err.Error())
		return rep
	}
	rep.Recorded = len(recorded)

	story, err := client.Story(ctx, id)
	if err != nil {
		rep.Problems = append(rep.Problems, "story: "+err.Error())
		return rep
	}
	rep.StoryProvided = story.Get("generated").Bool()
	rep.TireStrategy = story.Get("summary.tire_strategy").String()
	for _, ev := range story.Get("events").Array() {
		if ev.Get("kind").String() == "pit_stop" {
			rep.PitStopLaps = append(rep.PitStopLaps, int(ev.Get("lap").Int()))
		}
	}
	rep.Problems = append(rep.Problems, verifySession(cfg, laps, recorded, rep)...)

	if err := client.Close(ctx, id); err != nil {
		rep.Problems = append(rep.Problems, "close: "+err.Error())
	}
	return rep
}

func saveReport(filename string, report *Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(filename, data, reportPermission)
}

func displayReport(ctx context.Context, log logger.Logger, report *Report) {
	var submitted, failed, recorded int
	for _, s := range report.Sessions {
		submitted += s.Submitted
		failed += s.Failed
		recorded += s.Recorded
		for _, p := range s.Problems {
			log.Warn(ctx, "verification problem", logger.String("session_id", s.SessionID), logger.String("problem", p))
		}
	}
	lapsPerSecond := 0.0
	if report.Duration > 0 {
		lapsPerSecond = float64(submitted) / report.Duration.Seconds()
	}
	log.Info(ctx, "replay finished",
		logger.Int("sessions", len(report.Sessions)),
		logger.Int("submitted", submitted),
		logger.Int("failed", failed),
		logger.Int("recorded", recorded),
		logger.Int("problems", report.Problems()),
		logger.Duration("duration", report.Duration),
		logger.Float64("lapsPerSecond", lapsPerSecond))
}
