// Package config loads the go-armmodel service configuration from a YAML
// file, fills defaults, and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-armmodel/pkg/armmodel"
	"github.com/teslashibe/go-armmodel/pkg/sensor"
)

// Defaults.
const (
	DefaultPort     = "8090"
	DefaultLogLevel = "info"
	DefaultTickHz   = 60
	DefaultScript   = "point"
)

// Source kinds.
const (
	SourceSim    = "sim"
	SourceReplay = "replay"
	SourceRemote = "remote"
)

// Config is the root of the YAML file.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Source SourceConfig `yaml:"source"`
	Hands  []HandConfig `yaml:"hands"`
}

type ServerConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type SourceConfig struct {
	Kind   string  `yaml:"kind"`
	TickHz float64 `yaml:"tick_hz"`
	Script string  `yaml:"script"`
	Replay string  `yaml:"replay"`
	Loop   bool    `yaml:"loop"`
	Record string  `yaml:"record"`
}

// HandConfig describes one tracked controller. Preset picks the starting
// armmodel configuration and Tuning overrides individual fields of it.
type HandConfig struct {
	Name   string                `yaml:"name"`
	Preset string                `yaml:"preset"`
	Tuning armmodel.TuningParams `yaml:"tuning"`
}

// Arm resolves the hand's armmodel configuration.
func (h HandConfig) Arm() (armmodel.Config, error) {
	cfg, ok := armmodel.Preset(h.Preset)
	if !ok {
		return armmodel.Config{}, fmt.Errorf("hand %q: unknown preset %q", h.Name, h.Preset)
	}
	return h.Tuning.Apply(cfg), nil
}

// TickInterval is the tracker period derived from TickHz.
func (s SourceConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / s.TickHz)
}

// RecordPath returns where hand's samples are recorded, or "" when
// recording is off. With several hands each gets its own file, named by
// inserting the hand before the extension.
func (c Config) RecordPath(hand string) string {
	if c.Source.Record == "" {
		return ""
	}
	if len(c.Hands) <= 1 {
		return c.Source.Record
	}
	ext := filepath.Ext(c.Source.Record)
	return strings.TrimSuffix(c.Source.Record, ext) + "." + hand + ext
}

// Default returns the configuration used when no file is given: one
// right hand fed by the "point" simulation.
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// Load reads path (if non-empty), fills defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceSim
	}
	if cfg.Source.TickHz <= 0 {
		cfg.Source.TickHz = DefaultTickHz
	}
	if cfg.Source.Script == "" {
		cfg.Source.Script = DefaultScript
	}
	if len(cfg.Hands) == 0 {
		cfg.Hands = []HandConfig{{Name: "right"}}
	}
}

// applyEnv lets ARMMODEL_PORT and ARMMODEL_LOG_LEVEL override the file.
func applyEnv(cfg *Config) {
	if port := os.Getenv("ARMMODEL_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if level := os.Getenv("ARMMODEL_LOG_LEVEL"); level != "" {
		cfg.Server.LogLevel = level
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceSim:
		if !slices.Contains(sensor.Scripts(), c.Source.Script) {
			return fmt.Errorf("source.script must be one of %s, got %q",
				strings.Join(sensor.Scripts(), ", "), c.Source.Script)
		}
	case SourceRemote:
	case SourceReplay:
		if c.Source.Replay == "" {
			return errors.New("source.replay is required when source.kind is replay")
		}
	default:
		return fmt.Errorf("source.kind must be sim, replay or remote, got %q", c.Source.Kind)
	}

	if c.Source.TickHz > 1000 {
		return fmt.Errorf("source.tick_hz must be <= 1000, got %v", c.Source.TickHz)
	}
	if c.Source.Record != "" && c.Source.Record == c.Source.Replay {
		return errors.New("source.record and source.replay must be different files")
	}

	seen := make(map[string]bool, len(c.Hands))
	for _, h := range c.Hands {
		if h.Name == "" {
			return errors.New("hands[].name is required")
		}
		if seen[h.Name] {
			return fmt.Errorf("duplicate hand %q", h.Name)
		}
		seen[h.Name] = true
		if _, err := h.Arm(); err != nil {
			return err
		}
	}
	return nil
}
