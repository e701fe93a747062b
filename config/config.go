// Package config loads the server configuration: defaults, then a TOML
// file, then command line overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
)

// Config holds the server's combined configuration.
type Config struct {
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// StoreConfig selects where documents are persisted. Firestore is fronted
// by a write-behind cache flushed every FlushInterval.
type StoreConfig struct {
	Backend       string        `toml:"backend"`
	ProjectID     string        `toml:"project_id"`
	Collection    string        `toml:"collection"`
	FlushInterval time.Duration `toml:"flush_interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Overrides are values set on the command line. Empty fields are ignored.
type Overrides struct {
	Addr     string
	Backend  string
	LogLevel string
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend:       BackendMemory,
			Collection:    "documents",
			FlushInterval: 5 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load starts from the defaults, merges the file at path if one is given,
// applies o and validates the result.
func Load(path string, o Overrides) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.apply(o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes the TOML file at path over c. Keys missing from the file
// keep their current value.
func (c *Config) mergeFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file '%s': %w", path, err)
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		slog.Warn("unrecognized config keys", "file", path, "keys", undecoded)
	}
	return nil
}

func (c *Config) apply(o Overrides) {
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.Backend != "" {
		c.Store.Backend = o.Backend
	}
	if o.LogLevel != "" {
		c.Log.Level = o.LogLevel
	}
}

// Validate resets empty values to their defaults and reports settings that
// cannot work.
func (c *Config) Validate() error {
	defaults := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}
	if c.Store.Collection == "" {
		c.Store.Collection = defaults.Store.Collection
	}
	if c.Store.FlushInterval <= 0 {
		c.Store.FlushInterval = defaults.Store.FlushInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}

	var errs []error
	switch c.Store.Backend {
	case BackendMemory:
	case BackendFirestore:
		if c.Store.ProjectID == "" {
			errs = append(errs, errors.New("store.project_id is required for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	return level, nil
}
