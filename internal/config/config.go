// Package config loads tourneyq settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig selects the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueueConfig tunes the batch write queue.
type QueueConfig struct {
	PageSize   int  `yaml:"page_size"`
	AutoCommit bool `yaml:"auto_commit"`

	// MaxRetries is how many RetryErrors passes apply makes before giving up.
	MaxRetries int `yaml:"max_retries"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MetricsConfig holds metrics export settings.
type MetricsConfig struct {
	// Textfile, when set, is where apply writes queue metrics in the
	// Prometheus text format (node_exporter textfile collector).
	Textfile string `yaml:"textfile"`
}

// Config is the top-level configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "tourneyq.db"},
		Queue: QueueConfig{
			PageSize:   100,
			AutoCommit: false,
			MaxRetries: 1,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from an io.Reader. Keys missing from the input keep
// their defaults. A nil or empty reader yields Default().
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from a YAML file by path.
// A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	cfg, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must not be empty"))
	}
	if c.Queue.PageSize < 1 {
		errs = append(errs, fmt.Errorf("queue.page_size must be at least 1, got %d", c.Queue.PageSize))
	}
	if c.Queue.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("queue.max_retries must not be negative, got %d", c.Queue.MaxRetries))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps a log level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("log.level: unknown level %q", name)
	}
	return level, nil
}
