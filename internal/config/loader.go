package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "PITWALL_"
	envConfigFile = "PITWALL_CONFIG"
	// Read as fallbacks so existing deployments keep their key and model.
	envGeminiKey   = "GEMINI_API_KEY"
	envGeminiModel = "GEMINI_MODEL"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if PITWALL_CONFIG is set
//  3. env (prefix PITWALL_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// PITWALL_MODEL_DIR -> model_dir (flat keys matching koanf tags).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %w", ErrLoadConfig, err)
	}

	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv(envGeminiKey)
	}
	if !k.Exists("gemini_model") {
		if m := strings.TrimSpace(os.Getenv(envGeminiModel)); m != "" {
			cfg.GeminiModel = m
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
