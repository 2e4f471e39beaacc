package config

import (
	"time"

	"netinventory/internal/logging"
)

// Storage backends
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Default storage locations, relative to the working directory
const (
	DefaultInventoryFile = "./inventario.json"
	DefaultDatabaseFile  = "./netinventory.db"
)

// Config is the root configuration structure
type Config struct {
	Version int            `yaml:"version" ignored:"true"`
	Server  ServerConfig   `yaml:"server"`
	Storage StorageConfig  `yaml:"storage"`
	Policy  PolicyConfig   `yaml:"policy"`
	Log     logging.Config `yaml:"log"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects where the inventory is persisted
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	// Watch reloads the inventory when the JSON file changes on disk
	Watch bool `yaml:"watch"`
	// AutoSave persists after every successful mutation
	AutoSave bool `yaml:"autosave" split_words:"true"`
}

// PolicyConfig holds the traffic-cap policy. A zero Interval disables the
// periodic enforcer; the policy can still be applied on demand.
type PolicyConfig struct {
	LimitMB        float64  `yaml:"limit_mb" split_words:"true"`
	SuspendMinutes int      `yaml:"suspend_minutes" split_words:"true"`
	Interval       Duration `yaml:"interval"`
}

// Duration wraps time.Duration for YAML and environment decoding
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.Decode(s)
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Decode implements envconfig.Decoder
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
