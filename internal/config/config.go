// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load(ctx) layers a YAML file and PITWALL_* environment variables on top.
// - Validate reports every rejected field wrapped in ErrInvalidConfig.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/pitwall/internal/domain/features"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8000".
	Addr string `koanf:"addr"`

	// ModelDir holds scaler.json and the three model artifacts.
	ModelDir string `koanf:"model_dir"`

	// PitThreshold is the positive-class probability at which a pit stop is called imminent.
	PitThreshold float64 `koanf:"pit_threshold"`

	// ImputationStrategy is used for fields whose reference entry names no strategy.
	ImputationStrategy string `koanf:"imputation_strategy"`

	// PaceWindow is the number of prior laps in the rolling lap-time average.
	PaceWindow int `koanf:"pace_window"`

	// PaceStdMultiplier scales the rolling standard deviation into a pace-change threshold.
	PaceStdMultiplier float64 `koanf:"pace_std_multiplier"`

	// PaceMinDelta is the floor, in seconds, of the pace-change threshold.
	PaceMinDelta float64 `koanf:"pace_min_delta"`

	// LowConfidenceThreshold flags laps whose lap-time confidence falls below it.
	LowConfidenceThreshold float64 `koanf:"low_confidence_threshold"`

	// PitWindowProbability flags laps whose pit probability crosses it.
	PitWindowProbability float64 `koanf:"pit_window_probability"`

	// DedupeSize bounds the request-id cache used for idempotent submissions.
	DedupeSize int `koanf:"dedupe_size"`

	// StoryProvider selects the generative-text backend: gemini or none.
	StoryProvider string `koanf:"story_provider"`

	GeminiAPIKey   string `koanf:"gemini_api_key"`
	GeminiModel    string `koanf:"gemini_model"`
	GeminiEndpoint string `koanf:"gemini_endpoint"`

	// StoryTimeout bounds a single provider call.
	StoryTimeout time.Duration `koanf:"story_timeout"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":8000",
		ModelDir:               "./models",
		PitThreshold:           0.5,
		ImputationStrategy:     "median",
		PaceWindow:             5,
		PaceStdMultiplier:      1.5,
		PaceMinDelta:           0.5,
		LowConfidenceThreshold: 0.4,
		PitWindowProbability:   0.7,
		DedupeSize:             100_000,
		StoryProvider:          "gemini",
		GeminiModel:            "gemini-2.0-flash",
		GeminiEndpoint:         "https://generativelanguage.googleapis.com/v1beta",
		StoryTimeout:           20 * time.Second,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           45 * time.Second,
		ShutdownTimeout:        15 * time.Second,
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if strings.TrimSpace(c.ModelDir) == "" {
		errs = append(errs, errors.New("model_dir must not be empty"))
	}
	for name, v := range map[string]float64{
		"pit_threshold":            c.PitThreshold,
		"low_confidence_threshold": c.LowConfidenceThreshold,
		"pit_window_probability":   c.PitWindowProbability,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if _, err := features.ParseStrategy(c.ImputationStrategy); err != nil {
		errs = append(errs, fmt.Errorf("imputation_strategy: %w", err))
	}
	if c.PaceWindow <= 0 {
		errs = append(errs, errors.New("pace_window must be positive"))
	}
	if c.PaceStdMultiplier < 0 || c.PaceMinDelta < 0 {
		errs = append(errs, errors.New("pace thresholds must not be negative"))
	}
	switch strings.ToLower(c.StoryProvider) {
	case "gemini", "none":
	default:
		errs = append(errs, fmt.Errorf("story_provider %q is not one of gemini, none", c.StoryProvider))
	}
	for name, d := range map[string]time.Duration{
		"story_timeout":    c.StoryTimeout,
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
