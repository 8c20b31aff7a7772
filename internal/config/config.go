// Package config loads the allostat YAML configuration and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/allostat/internal/application"
	"github.com/sawpanic/allostat/internal/cache"
	"github.com/sawpanic/allostat/internal/conflict"
	"github.com/sawpanic/allostat/internal/infrastructure/db"
	apihttp "github.com/sawpanic/allostat/internal/interfaces/http"
	"github.com/sawpanic/allostat/internal/pipeline"
	"github.com/sawpanic/allostat/internal/smoothing"
	"github.com/sawpanic/allostat/internal/weights"
)

// DefaultPath is used when no --config flag is given
const DefaultPath = "config/allostat.yaml"

// Config is the complete service configuration
type Config struct {
	Engine    EngineConfig              `yaml:"engine"`
	Conflicts conflict.Thresholds       `yaml:"conflicts"`
	Database  db.Config                 `yaml:"database"`
	Redis     cache.Config              `yaml:"redis"`
	HTTP      apihttp.ServerConfig      `yaml:"http"`
	Breaker   application.BreakerConfig `yaml:"breaker"`
	Log       LogConfig                 `yaml:"log"`
}

// EngineConfig flattens the weight, smoothing and window settings into one section
type EngineConfig struct {
	Weights   weights.Config    `yaml:",inline"`
	Smoothing smoothing.Tracker `yaml:",inline"`
	Pipeline  pipeline.Config   `yaml:",inline"`
}

// LogConfig controls zerolog output
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the stock configuration
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Weights:   weights.DefaultConfig(),
			Smoothing: smoothing.NewTracker(),
			Pipeline:  pipeline.DefaultConfig(),
		},
		Conflicts: conflict.DefaultThresholds(),
		Database:  db.DefaultConfig(),
		Redis:     cache.DefaultConfig(),
		HTTP:      apihttp.DefaultServerConfig(),
		Breaker:   application.DefaultBreakerConfig(),
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads the YAML file over the defaults when it exists, applies
// ALLOSTAT_* environment overrides and validates the result
func Load(path string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Save writes the configuration as YAML
func Save(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv applies environment overrides for every section
func (c *Config) ApplyEnv() {
	c.Database.ApplyEnv()
	c.Redis.ApplyEnv()

	if addr := os.Getenv("ALLOSTAT_HTTP_ADDR"); addr != "" {
		c.HTTP.Addr = addr
	}
	if level := os.Getenv("ALLOSTAT_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate ensures every section is usable
func (c *Config) Validate() error {
	if err := c.Engine.Weights.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Engine.Pipeline.Validate(c.Engine.Weights.MinEntries); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.Engine.Smoothing.ShortPeriod < 1 {
		return fmt.Errorf("engine: short_period must be positive, got %d", c.Engine.Smoothing.ShortPeriod)
	}
	if c.Engine.Smoothing.LongPeriod <= c.Engine.Smoothing.ShortPeriod {
		return fmt.Errorf("engine: long_period (%d) must be > short_period (%d)",
			c.Engine.Smoothing.LongPeriod, c.Engine.Smoothing.ShortPeriod)
	}
	if c.Engine.Smoothing.TrendThreshold < 0 {
		return fmt.Errorf("engine: trend_threshold cannot be negative, got %f", c.Engine.Smoothing.TrendThreshold)
	}

	if err := c.Conflicts.Validate(); err != nil {
		return fmt.Errorf("conflicts: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis: addr is required when enabled")
	}
	if err := c.Breaker.Validate(); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}
