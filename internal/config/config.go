// Package config provides configuration management for netinventory.
//
// Values come from three layers, later ones winning:
//  1. built-in defaults
//  2. the YAML config file, if one is found
//  3. NETINV_* environment variables
//
// Config file locations (priority order):
//  1. $NETINV_CONFIG
//  2. ./netinventory.yaml
//  3. ~/.config/netinventory/config.yaml
//  4. /etc/netinventory/config.yaml
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"netinventory/internal/logging"
)

// EnvPrefix is the prefix of environment overrides (NETINV_SERVER_ADDR, ...)
const EnvPrefix = "NETINV"

// MaxSuspendMinutes bounds suspension durations accepted from operators
const MaxSuspendMinutes = 100000

// Load finds and loads the config file, or starts from defaults if none is
// found, then applies environment overrides. It returns the file path used.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		if err := cfg.finish(); err != nil {
			return nil, "", err
		}
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path, then applies environment
// overrides and validates the result.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func (c *Config) finish() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	c.applyDefaults()
	return c.Validate()
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			Backend:  BackendJSON,
			Path:     DefaultInventoryFile,
			AutoSave: true,
		},
		Policy: PolicyConfig{
			LimitMB:        1024,
			SuspendMinutes: 30,
		},
		Log: logging.Config{
			Level:      "info",
			Format:     "text",
			Output:     logging.OutputConsole,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
	}
}

// applyDefaults fills in values an override may have blanked
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendJSON
	}
	if c.Storage.Path == "" {
		if c.Storage.Backend == BackendSQLite {
			c.Storage.Path = DefaultDatabaseFile
		} else {
			c.Storage.Path = DefaultInventoryFile
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend)
	}
	if c.Policy.LimitMB < 0 {
		return fmt.Errorf("policy.limit_mb: must not be negative, got %v", c.Policy.LimitMB)
	}
	if c.Policy.SuspendMinutes < 1 || c.Policy.SuspendMinutes > MaxSuspendMinutes {
		return fmt.Errorf("policy.suspend_minutes: must be between 1 and %d, got %d", MaxSuspendMinutes, c.Policy.SuspendMinutes)
	}
	if c.Policy.Interval.Duration() < 0 {
		return fmt.Errorf("policy.interval: must not be negative, got %s", c.Policy.Interval.Duration())
	}
	return nil
}

// Summary returns a one-line human-readable summary
func (c *Config) Summary() string {
	enforcer := "off"
	if c.Policy.Interval > 0 {
		enforcer = "every " + c.Policy.Interval.Duration().String()
	}
	return fmt.Sprintf("addr=%s storage=%s:%s watch=%t autosave=%t policy=%gMB/%dmin enforcer=%s",
		c.Server.Addr, c.Storage.Backend, c.Storage.Path, c.Storage.Watch, c.Storage.AutoSave,
		c.Policy.LimitMB, c.Policy.SuspendMinutes, enforcer)
}
