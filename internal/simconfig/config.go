// Package simconfig loads the simulation core's configuration surface:
// simulation runtime settings, the device list, grid topology,
// and per-controller defaults.
//
// Follows pkg/config/config.go's three-layer load order (typed defaults
// from New(), a YAML file overlay, then an environment-variable overlay
// via envdecode), its godotenv-optional .env read, and its "no tagged
// fields set" tolerance when decoding environment overrides.
package simconfig

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tymyrddin/power-and-light-sim-sub001/internal/simerr"
)

// RuntimeConfig is the simulation clock/scheduler's runtime shape
// ("simulation runtime {updateInterval seconds, realtime bool,
// timeAcceleration (>0, ≤1000)}").
type RuntimeConfig struct {
	UpdateIntervalSec float64 `yaml:"update_interval_seconds" env:"SIMCORE_UPDATE_INTERVAL_SECONDS"`
	Realtime bool `yaml:"realtime" env:"SIMCORE_REALTIME"`
	TimeAcceleration float64 `yaml:"time_acceleration" env:"SIMCORE_TIME_ACCELERATION"`
}

// DeviceEntry is one configured device ("device list entry
// {name, kind, id, protocols map, description, location}").
type DeviceEntry struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	ID int `yaml:"id"`
	Protocols map[string]string `yaml:"protocols"`
	Description string `yaml:"description"`
	Location string `yaml:"location"`
}

// LineEntry is one grid topology transmission line ("lines{name,
// from, to}").
type LineEntry struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To string `yaml:"to"`
}

// GridTopology is the grid physics engine's configured layout: base MVA,
// buses, and transmission lines.
type GridTopology struct {
	BaseMVA float64 `yaml:"base_mva"`
	Buses []string `yaml:"buses"`
	Lines []LineEntry `yaml:"lines"`
}

// ControllerDefaults carries the per-kind defaults every vendor controller
// falls back to absent a device-specific override ("per-controller
// defaults carried by the controller's kind").
type ControllerDefaults struct {
	Kind string `yaml:"kind"`
	ScanIntervalSec float64 `yaml:"scan_interval_seconds"`
}

// Config is the top-level configuration structure consumed by cmd/simcore.
type Config struct {
	Runtime RuntimeConfig `yaml:"runtime"`
	Devices []DeviceEntry `yaml:"devices"`
	Grid GridTopology `yaml:"grid"`
	ControllerDefaults []ControllerDefaults `yaml:"controller_defaults"`
	AuditLogCapacity int `yaml:"audit_log_capacity" env:"SIMCORE_AUDIT_LOG_CAPACITY"`
	SpeedCap float64 `yaml:"speed_cap" env:"SIMCORE_SPEED_CAP"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			UpdateIntervalSec: 0.01,
			Realtime: true,
			TimeAcceleration: 1.0,
		},
		Grid: GridTopology{
			BaseMVA: 100.0,
		},
		AuditLogCapacity: 10000,
		SpeedCap: 1000.0,
	}
}

// Load loads configuration from an optional .env file, an optional YAML
// file, and environment-variable overrides, in that order.
func Load(yamlPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if yamlPath != "" {
		if err := loadFromFile(yamlPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil, fmt.Errorf("decode environment overrides: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate enforces the runtime bounds ("timeAcceleration (>0,
// ≤1000)") and returns a ConfigurationError on violation.
func (c *Config) Validate() error {
	if c.Runtime.TimeAcceleration <= 0 || c.Runtime.TimeAcceleration > c.SpeedCap {
		return simerr.New(simerr.ConfigurationError, "runtime.time_acceleration must be > 0 and <= speed cap").
			WithDetails(map[string]any{"time_acceleration": c.Runtime.TimeAcceleration, "speed_cap": c.SpeedCap})
	}
	if c.Runtime.UpdateIntervalSec <= 0 {
		return simerr.New(simerr.ConfigurationError, "runtime.update_interval_seconds must be > 0").
			WithDetails(map[string]any{"update_interval_seconds": c.Runtime.UpdateIntervalSec})
	}
	for _, d := range c.Devices {
		if d.Name == "" || d.Kind == "" {
			return simerr.New(simerr.ConfigurationError, "device entry missing name or kind").
				WithDetails(map[string]any{"device": d})
		}
	}
	for _, l := range c.Grid.Lines {
		if l.From == "" || l.To == "" {
			return simerr.New(simerr.ConfigurationError, "grid line entry missing from/to bus").
				WithDetails(map[string]any{"line": l})
		}
	}
	return nil
}

// DefaultsForKind returns the configured scan interval default for a
// controller kind, and whether one was found.
func (c *Config) DefaultsForKind(kind string) (ControllerDefaults, bool) {
	for _, d := range c.ControllerDefaults {
		if d.Kind == kind {
			return d, true
		}
	}
	return ControllerDefaults{}, false
}
