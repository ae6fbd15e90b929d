// Package config loads the settings of a framescope recording.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file settings.
const (
	EnvQuantum       = "FRAMESCOPE_QUANTUM"
	EnvMonitorPort   = "FRAMESCOPE_MONITOR_PORT"
	EnvRecordingPath = "FRAMESCOPE_RECORDING_PATH"
	EnvLogLevel      = "FRAMESCOPE_LOG_LEVEL"
)

// Config holds the settings of one recording.
type Config struct {
	// Quantum is the minimum delay between two scheduled flushes.
	Quantum time.Duration `yaml:"quantum"`

	// FlushOnCreate flushes pending samples before a new node is announced.
	FlushOnCreate bool `yaml:"flush_on_create"`

	Monitor   MonitorConfig   `yaml:"monitor"`
	Recording RecordingConfig `yaml:"recording"`
	Log       LogConfig       `yaml:"log"`
}

// MonitorConfig configures the inspection server.
type MonitorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Port 0 picks a free port.
	Port int `yaml:"port"`
}

// RecordingConfig configures the frame storage.
type RecordingConfig struct {
	// Path of the sqlite file. Empty generates a unique name.
	Path string `yaml:"path"`

	// JSON also writes the frames as a JSON array next to the database.
	JSON bool `yaml:"json"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Quantum:       16 * time.Millisecond,
		FlushOnCreate: true,
		Monitor: MonitorConfig{
			Enabled: false,
			Port:    0,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads the configuration at path on top of the defaults, loads an
// optional .env file and applies the environment overrides. An empty path
// only applies the overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "loading .env")
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields with the FRAMESCOPE_* environment variables.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvQuantum); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvQuantum)
		}

		c.Quantum = d
	}

	if v, ok := os.LookupEnv(EnvMonitorPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvMonitorPort)
		}

		c.Monitor.Port = port
		c.Monitor.Enabled = true
	}

	if v, ok := os.LookupEnv(EnvRecordingPath); ok {
		c.Recording.Path = v
	}

	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.Log.Level = v
	}

	return nil
}

// Validate checks the ranges of the settings.
func (c *Config) Validate() error {
	if c.Quantum < 0 {
		return errors.Newf("quantum must not be negative, got %s", c.Quantum)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		return errors.Newf("monitor port %d out of range", c.Monitor.Port)
	}

	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %s", path)
}
