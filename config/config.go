// Package config provides configuration loading and access for the viewer.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all viewer configuration parameters.
type Config struct {
	Screen         ScreenConfig    `yaml:"screen"`
	Transport      TransportConfig `yaml:"transport"`
	Render         RenderConfig    `yaml:"render"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
	Metrics        MetricsConfig   `yaml:"metrics"`
	Logging        LoggingConfig   `yaml:"logging"`
	SpeciesPresets []SpeciesPreset `yaml:"species_presets"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"` // Render loop frame cap
	Title     string `yaml:"title"`
}

// TransportConfig holds connection settings for the simulation server.
type TransportConfig struct {
	Kind             string        `yaml:"kind"` // "ws" or "nats"
	URL              string        `yaml:"url"`
	NATSURL          string        `yaml:"nats_url"`
	PatchSubject     string        `yaml:"patch_subject"`
	ControlSubject   string        `yaml:"control_subject"`
	ReconnectMin     time.Duration `yaml:"reconnect_min"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	CommandRate      float64       `yaml:"command_rate"`  // Outbound commands per second
	CommandBurst     int           `yaml:"command_burst"` // Burst allowance for outbound commands
	ResyncOnConnect  bool          `yaml:"resync_on_connect"`
	ReadLimit        int64         `yaml:"read_limit"` // Max inbound message size in bytes
	EventBuffer      int           `yaml:"event_buffer"`
}

// RenderConfig holds initial visualization options and palette.
type RenderConfig struct {
	ShowGrid      bool    `yaml:"show_grid"`
	ShowVision    bool    `yaml:"show_vision"`
	ShowEnergy    bool    `yaml:"show_energy"`
	ShowHunger    bool    `yaml:"show_hunger"`
	ShowGroups    bool    `yaml:"show_groups"`
	ShowDiet      bool    `yaml:"show_diet"`
	ShowStats     bool    `yaml:"show_stats"`
	ParticleScale float64 `yaml:"particle_scale"`
	GridSize      float64 `yaml:"grid_size"`
	Background    string  `yaml:"background"` // Hex color
	LinkAlpha     float64 `yaml:"link_alpha"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindowSec      float64 `yaml:"stats_window_sec"`
	PerfCollectorWindow int     `yaml:"perf_collector_window"`
	OutputDir           string  `yaml:"output_dir"`
}

// MetricsConfig holds the prometheus exporter settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the exporter
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SpeciesPreset is a template for an add_species command.
type SpeciesPreset struct {
	Name              string      `yaml:"name"`
	Color             string      `yaml:"color"`
	Diet              string      `yaml:"diet"`
	ReproductionStyle string      `yaml:"reproduction_style"`
	ParticleType      string      `yaml:"particle_type"` // "creature" or "plant"
	InitialCount      int         `yaml:"initial_count"`
	Rules             PresetRules `yaml:"rules"`
}

// PresetRules mirrors the behavioral parameters of a species template.
type PresetRules struct {
	ReproductionRate  float64 `yaml:"reproduction_rate"`
	EnergyConsumption float64 `yaml:"energy_consumption"`
	MaxSpeed          float64 `yaml:"max_speed"`
	VisionRange       float64 `yaml:"vision_range"`
	SocialDistance    float64 `yaml:"social_distance"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	FrameBudget time.Duration // 1s / Screen.TargetFPS
	StatsWindow time.Duration // Telemetry.StatsWindowSec as a duration
	LogLevel    slog.Level
	PresetIndex map[string]int // name -> index into SpeciesPresets
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Transport.Kind {
	case "ws", "nats":
	default:
		return fmt.Errorf("transport.kind %q: must be ws or nats", c.Transport.Kind)
	}
	if c.Transport.ReconnectMax < c.Transport.ReconnectMin {
		return fmt.Errorf("transport.reconnect_max (%s) below reconnect_min (%s)",
			c.Transport.ReconnectMax, c.Transport.ReconnectMin)
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Screen.TargetFPS <= 0 {
		c.Screen.TargetFPS = 60
	}
	c.Derived.FrameBudget = time.Second / time.Duration(c.Screen.TargetFPS)
	c.Derived.StatsWindow = time.Duration(c.Telemetry.StatsWindowSec * float64(time.Second))
	c.Derived.LogLevel, _ = parseLevel(c.Logging.Level)

	if c.Transport.EventBuffer <= 0 {
		c.Transport.EventBuffer = 64
	}

	c.Derived.PresetIndex = make(map[string]int, len(c.SpeciesPresets))
	for i, p := range c.SpeciesPresets {
		c.Derived.PresetIndex[p.Name] = i
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logging.level %q: unknown level", s)
}

// Preset returns the species preset with the given name.
func (c *Config) Preset(name string) (SpeciesPreset, bool) {
	i, ok := c.Derived.PresetIndex[name]
	if !ok {
		return SpeciesPreset{}, false
	}
	return c.SpeciesPresets[i], true
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
