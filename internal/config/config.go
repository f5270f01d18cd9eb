// Package config loads dashboard settings from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/user/sales-dashboard-go/internal/aggregate"
	"github.com/user/sales-dashboard-go/internal/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	DataDir  string        `yaml:"data_dir"`
	CacheDir string        `yaml:"cache_dir"` // Defaults to <data_dir>/.dashboard/cache
	Server   ServerConfig  `yaml:"server"`
	Logging  LoggingConfig `yaml:"logging"`
	Charts   []ChartSpec   `yaml:"charts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChartSpec declares one chart: which dataset it reads, how rows are reduced,
// and how the result is drawn.
type ChartSpec struct {
	ID          string           `yaml:"id"`
	Title       string           `yaml:"title"`
	Kind        models.ChartKind `yaml:"kind"`
	Dataset     string           `yaml:"dataset"`
	Label       []string         `yaml:"label"`
	Value       []string         `yaml:"value,omitempty"`
	Aggregation aggregate.Kind   `yaml:"aggregation"`
	Top         int              `yaml:"top,omitempty"`
	SeriesLabel string           `yaml:"series_label,omitempty"`
	Colors      []string         `yaml:"colors,omitempty"`
	BorderColor string           `yaml:"border_color,omitempty"`
	Fill        bool             `yaml:"fill,omitempty"`
}

// AggregateSpec converts the chart into an aggregate.Spec.
func (c ChartSpec) AggregateSpec() aggregate.Spec {
	return aggregate.Spec{
		Kind:  c.Aggregation,
		Label: aggregate.Field(c.Label),
		Value: aggregate.Field(c.Value),
		Top:   c.Top,
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: filepath.Join("assets", "data"),
		Server: ServerConfig{
			Addr:  ":8080",
			Watch: false,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Values from a .env file in the working directory and the process
// environment override the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	// A missing .env is normal.
	_ = godotenv.Load()
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DASHBOARD_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DASHBOARD_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("DASHBOARD_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// ResolvedCacheDir returns the cache directory, defaulting under the data dir.
func (c *Config) ResolvedCacheDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(c.DataDir, ".dashboard", "cache")
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.Logging.Level)
	}
	seen := make(map[string]bool, len(c.Charts))
	for i, ch := range c.Charts {
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("chart %d: %w", i, err)
		}
		if seen[ch.ID] {
			return fmt.Errorf("%w: duplicate chart id %q", ErrInvalid, ch.ID)
		}
		seen[ch.ID] = true
	}
	return nil
}

// Validate checks a single chart spec.
func (c ChartSpec) Validate() error {
	switch {
	case c.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalid)
	case !c.Kind.Valid():
		return fmt.Errorf("%w: %s: unknown kind %q", ErrInvalid, c.ID, c.Kind)
	case c.Dataset == "":
		return fmt.Errorf("%w: %s: dataset is required", ErrInvalid, c.ID)
	case len(c.Label) == 0:
		return fmt.Errorf("%w: %s: label column is required", ErrInvalid, c.ID)
	case !c.Aggregation.Valid():
		return fmt.Errorf("%w: %s: unknown aggregation %q", ErrInvalid, c.ID, c.Aggregation)
	case c.Aggregation != aggregate.Count && len(c.Value) == 0:
		return fmt.Errorf("%w: %s: value column is required for %s", ErrInvalid, c.ID, c.Aggregation)
	case c.Top < 0:
		return fmt.Errorf("%w: %s: top must not be negative", ErrInvalid, c.ID)
	}
	return nil
}
