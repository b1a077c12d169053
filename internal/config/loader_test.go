package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/pitwall/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"PITWALL_CONFIG", "PITWALL_ADDR", "PITWALL_MODEL_DIR", "PITWALL_PIT_THRESHOLD",
	"PITWALL_PACE_WINDOW", "PITWALL_STORY_TIMEOUT", "PITWALL_GEMINI_API_KEY", "PITWALL_STORY_PROVIDER",
	"PITWALL_GEMINI_MODEL", "GEMINI_API_KEY", "GEMINI_MODEL",
}

func clearConfigEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		_ = os.Unsetenv(name)
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
				convey.So(cfg.ModelDir, convey.ShouldEqual, "./models")
				convey.So(cfg.PitThreshold, convey.ShouldEqual, 0.5)
				convey.So(cfg.PaceWindow, convey.ShouldEqual, 5)
				convey.So(cfg.PaceStdMultiplier, convey.ShouldEqual, 1.5)
				convey.So(cfg.StoryTimeout, convey.ShouldEqual, 20*time.Second)
				convey.So(cfg.GeminiAPIKey, convey.ShouldBeEmpty)
				convey.So(cfg.GeminiModel, convey.ShouldEqual, "gemini-2.0-flash")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("PITWALL_ADDR", ":9090")
			t.Setenv("PITWALL_MODEL_DIR", "/srv/models")
			t.Setenv("PITWALL_PIT_THRESHOLD", "0.65")
			t.Setenv("PITWALL_PACE_WINDOW", "8")
			t.Setenv("PITWALL_STORY_TIMEOUT", "3s")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.ModelDir, convey.ShouldEqual, "/srv/models")
				convey.So(cfg.PitThreshold, convey.ShouldEqual, 0.65)
				convey.So(cfg.PaceWindow, convey.ShouldEqual, 8)
				convey.So(cfg.StoryTimeout, convey.ShouldEqual, 3*time.Second)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			path := filepath.Join(t.TempDir(), "pitwall.yaml")
			content := "addr: \":7000\"\npace_min_delta: 0.8\nstory_provider: none\nlog_format: json\n"
			convey.So(os.WriteFile(path, []byte(content), 0o600), convey.ShouldBeNil)
			t.Setenv("PITWALL_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values are applied", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
				convey.So(cfg.PaceMinDelta, convey.ShouldEqual, 0.8)
				convey.So(cfg.StoryProvider, convey.ShouldEqual, "none")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})

			convey.Convey("And env still wins over the file", func() {
				t.Setenv("PITWALL_ADDR", ":7001")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7001")
			})
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("PITWALL_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When only the legacy Gemini key is set", func() {
			t.Setenv("GEMINI_API_KEY", "legacy-key")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it is used as the provider key", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GeminiAPIKey, convey.ShouldEqual, "legacy-key")
			})
		})

		convey.Convey("When only the legacy Gemini model is set", func() {
			t.Setenv("GEMINI_MODEL", "gemini-2.5-flash")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it replaces the default model", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GeminiModel, convey.ShouldEqual, "gemini-2.5-flash")
			})

			convey.Convey("And the prefixed variable still wins", func() {
				t.Setenv("PITWALL_GEMINI_MODEL", "gemini-2.0-flash-lite")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.GeminiModel, convey.ShouldEqual, "gemini-2.0-flash-lite")
			})
		})

		convey.Convey("When env holds an out-of-range threshold", func() {
			t.Setenv("PITWALL_PIT_THRESHOLD", "1.5")

			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "pit_threshold")
			})
		})
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *config.Config)
		want   string
	}{
		{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr"},
		{"empty model dir", func(c *config.Config) { c.ModelDir = "" }, "model_dir"},
		{"bad strategy", func(c *config.Config) { c.ImputationStrategy = "mode" }, "imputation_strategy"},
		{"zero window", func(c *config.Config) { c.PaceWindow = 0 }, "pace_window"},
		{"negative delta", func(c *config.Config) { c.PaceMinDelta = -1 }, "pace thresholds"},
		{"unknown provider", func(c *config.Config) { c.StoryProvider = "openai" }, "story_provider"},
		{"zero timeout", func(c *config.Config) { c.StoryTimeout = 0 }, "story_timeout"},
		{"confidence range", func(c *config.Config) { c.LowConfidenceThreshold = -0.1 }, "low_confidence_threshold"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.New(context.Background())
			tc.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}

	if err := config.New(context.Background()).Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for _, strategy := range []string{"mean", "median", "ffill", "forward_fill", "none"} {
		cfg := config.New(context.Background())
		cfg.ImputationStrategy = strategy
		if err := cfg.Validate(); err != nil {
			t.Fatalf("strategy %q should validate: %v", strategy, err)
		}
	}
}
