// Package config loads stockpile's YAML configuration file.
//
// Every field is optional; missing fields keep their defaults. Unknown
// fields are rejected so typos surface instead of being ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stockpile/internal/inventory"
)

// DefaultDatabase is used when neither the file nor --db names one.
const DefaultDatabase = "stockpile.db"

// Config is the top-level configuration.
type Config struct {
	// Database is the SQLite file path. ":memory:" is allowed.
	Database string `yaml:"database"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Engine Engine `yaml:"engine"`
	Sim    Sim    `yaml:"sim"`
}

// Engine configures result polling.
type Engine struct {
	PollAttempts int           `yaml:"poll_attempts"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Sim configures the local subsystem.
type Sim struct {
	// ReadyAfter is how many status polls report Pending before a result
	// is ready.
	ReadyAfter int `yaml:"ready_after"`

	// Latency delays each purchase completion.
	Latency time.Duration `yaml:"latency"`

	// RegistrationWait bounds how long a completion waits for its
	// handler to be registered. Zero uses the subsystem default.
	RegistrationWait time.Duration `yaml:"registration_wait"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Database: DefaultDatabase,
		LogLevel: "info",
		Engine: Engine{
			PollAttempts: inventory.DefaultPollAttempts,
			PollInterval: inventory.DefaultPollInterval,
		},
	}
}

// Load reads the file at path over the defaults.
// An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Engine.PollAttempts < 1 {
		return fmt.Errorf("engine.poll_attempts must be positive, got %d", c.Engine.PollAttempts)
	}
	if c.Engine.PollInterval < 0 {
		return fmt.Errorf("engine.poll_interval must not be negative, got %s", c.Engine.PollInterval)
	}
	if c.Sim.ReadyAfter < 0 {
		return fmt.Errorf("sim.ready_after must not be negative, got %d", c.Sim.ReadyAfter)
	}
	if c.Sim.Latency < 0 {
		return fmt.Errorf("sim.latency must not be negative, got %s", c.Sim.Latency)
	}
	if c.Sim.RegistrationWait < 0 {
		return fmt.Errorf("sim.registration_wait must not be negative, got %s", c.Sim.RegistrationWait)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", name)
	}
}
