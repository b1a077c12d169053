package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/okian/pitwall/internal/adapters/http/api"
	"github.com/okian/pitwall/internal/adapters/http/site"
	"github.com/okian/pitwall/internal/adapters/http/swagger"
	"github.com/okian/pitwall/internal/adapters/llm/gemini"
	app "github.com/okian/pitwall/internal/app"
	"github.com/okian/pitwall/internal/config"
	"github.com/okian/pitwall/internal/domain/story"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// HTTP server and updater constants.
const (
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := setupLogging(cfg); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	svc := newService(cfg, log)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("model_dir", cfg.ModelDir),
			logger.String("story_provider", cfg.StoryProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(context.Background(), "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
}

// setupLogging applies format and level from cfg. An invalid level falls back to info.
func setupLogging(cfg *config.Config) error {
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return err
	}
	if err := logger.Init(); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(context.Background(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return nil
}

// newProvider selects the generative-text backend. A missing key disables stories
// without failing startup.
func newProvider(cfg *config.Config) story.Provider {
	if !strings.EqualFold(cfg.StoryProvider, "gemini") || strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return story.Disabled{}
	}
	return gemini.New(gemini.Config{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Endpoint: cfg.GeminiEndpoint,
		Timeout:  cfg.StoryTimeout,
	})
}

func newService(cfg *config.Config, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log),
		app.WithModelDir(cfg.ModelDir),
		app.WithPitThreshold(cfg.PitThreshold),
		app.WithImputationStrategy(cfg.ImputationStrategy),
		app.WithPaceDetection(cfg.PaceWindow, cfg.PaceStdMultiplier, cfg.PaceMinDelta),
		app.WithLowConfidenceThreshold(cfg.LowConfidenceThreshold),
		app.WithPitWindowProbability(cfg.PitWindowProbability),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithStoryProvider(newProvider(cfg)),
		app.WithStoryTimeout(cfg.StoryTimeout),
	)
}

// newMux registers documentation, banner and business routes.
func newMux(ctx context.Context, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	site.Register(ctx, mux)
	api.NewServer(svc, svc).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
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

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
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

// updateServiceMetrics mirrors the service snapshot into gauges.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if loaded, ok := stats["modelsLoaded"].(bool); ok {
		metrics.UpdateModelsLoaded(loaded)
	}
	active, okA := stats["activeSessions"].(int)
	total, okT := stats["totalSessions"].(int)
	if okA && okT {
		metrics.UpdateSessionCounts(active, total)
	}
}
