// Package config loads the core's runtime configuration from
// environment variables, with an optional YAML overlay file for the
// settings that are awkward to express as a single env var (strategy
// defaults, bounded-concurrency knobs).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataguild/contractguard/pkg/govtypes"
)

// Config holds the core's runtime configuration.
type Config struct {
	Port         string
	LogLevel     string
	PoliciesDir  string
	HistoryDir   string
	LLMBackendURL string
	LLMTimeout   time.Duration

	SemanticFanOut       int
	SemanticInFlightCap  int
	DefaultStrategy      govtypes.Strategy
	DefaultDeadline      time.Duration
}

// overlay is the optional YAML file shape, for settings ops may prefer
// to version-control rather than pass as environment variables.
type overlay struct {
	SemanticFanOut      int    `yaml:"semantic_fan_out"`
	SemanticInFlightCap int    `yaml:"semantic_in_flight_cap"`
	DefaultStrategy     string `yaml:"default_strategy"`
	DefaultDeadlineMs   int    `yaml:"default_deadline_ms"`
}

// Load builds a Config from environment variables, then applies a YAML
// overlay file if CONTRACTGUARD_CONFIG names one.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                envOr("PORT", "8080"),
		LogLevel:            envOr("LOG_LEVEL", "INFO"),
		PoliciesDir:         envOr("POLICIES_DIR", "./policies"),
		HistoryDir:          envOr("HISTORY_DIR", "./data/history"),
		LLMBackendURL:       envOr("LLM_BACKEND_URL", "http://localhost:11434"),
		LLMTimeout:          envDurationOr("LLM_TIMEOUT", 30*time.Second),
		SemanticFanOut:      envIntOr("SEMANTIC_FAN_OUT", 4),
		SemanticInFlightCap: envIntOr("SEMANTIC_IN_FLIGHT_CAP", 32),
		DefaultStrategy:     govtypes.Strategy(envOr("DEFAULT_STRATEGY", string(govtypes.StrategyAdaptive))),
		DefaultDeadline:     envDurationOr("DEFAULT_DEADLINE", 30*time.Second),
	}

	if path := os.Getenv("CONTRACTGUARD_CONFIG"); path != "" {
		if err := applyOverlay(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func applyOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read overlay %q: %w", path, err)
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("config: parse overlay %q: %w", path, err)
	}

	if ov.SemanticFanOut > 0 {
		cfg.SemanticFanOut = ov.SemanticFanOut
	}
	if ov.SemanticInFlightCap > 0 {
		cfg.SemanticInFlightCap = ov.SemanticInFlightCap
	}
	if ov.DefaultStrategy != "" {
		cfg.DefaultStrategy = govtypes.Strategy(ov.DefaultStrategy)
	}
	if ov.DefaultDeadlineMs > 0 {
		cfg.DefaultDeadline = time.Duration(ov.DefaultDeadlineMs) * time.Millisecond
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
