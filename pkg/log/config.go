package log

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pilot-net/hydrogen/internal/logging/severity"
)

// Config is the complete configuration for the logging core: the
// per-destination filter tables, line-formatting widths, and the local file
// path. Shipper configuration is read
// separately from the environment (shipper.FromEnv), since it is fixed to
// environment variables rather than the application config object.
type Config struct {
	Console  DestinationConfig `yaml:"console"`
	File     FileConfig        `yaml:"file"`
	Remote   DestinationConfig `yaml:"remote"`
	Database DestinationConfig `yaml:"database"`
	Notify   DestinationConfig `yaml:"notify"`

	LevelWidth     int `yaml:"level_width,omitempty"`
	SubsystemWidth int `yaml:"subsystem_width,omitempty"`
}

// DestinationConfig is the YAML shape of one destination's filter table.
type DestinationConfig struct {
	Enabled    bool                      `yaml:"enabled"`
	Default    severity.Level            `yaml:"default"`
	Subsystems map[string]severity.Level `yaml:"subsystems,omitempty"`
}

// FileConfig is the local file sink's configuration: the destination
// filter table plus the append-mode file path, provided at init time.
type FileConfig struct {
	DestinationConfig `yaml:",inline"`
	Path              string `yaml:"path,omitempty"`
}

func (d DestinationConfig) toFilterTable() severity.FilterTable {
	return severity.FilterTable{
		Enabled:    d.Enabled,
		Default:    d.Default,
		Subsystems: d.Subsystems,
	}
}

// FilterTables assembles the map router.Config expects, keyed by
// severity.Destination, from the YAML-shaped per-destination config.
func (c Config) FilterTables() map[severity.Destination]severity.FilterTable {
	return map[severity.Destination]severity.FilterTable{
		severity.Console:  c.Console.toFilterTable(),
		severity.File:     c.File.toFilterTable(),
		severity.Remote:   c.Remote.toFilterTable(),
		severity.Database: c.Database.toFilterTable(),
		severity.Notify:   c.Notify.toFilterTable(),
	}
}

// DefaultConfig returns a config with console and file logging enabled at
// Debug and everything else disabled, matching what a fresh deployment with
// no config file should do.
func DefaultConfig() *Config {
	return &Config{
		Console: DestinationConfig{Enabled: true, Default: severity.Debug},
		File: FileConfig{
			DestinationConfig: DestinationConfig{Enabled: true, Default: severity.Debug},
			Path:              "hydrogen.log",
		},
		Remote:         DestinationConfig{Enabled: false, Default: severity.Debug},
		Database:       DestinationConfig{Enabled: false, Default: severity.Debug},
		Notify:         DestinationConfig{Enabled: false, Default: severity.Debug},
		LevelWidth:     7,
		SubsystemWidth: 16,
	}
}

// LoadFromFile loads a logging Config from a YAML file, starting from
// DefaultConfig so a partial file only overrides what it mentions.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading log config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing log config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides applies HYDROGEN_LOG_* environment overrides on top of
// whatever was loaded from file or defaults, following the usual
// prefixed-override convention for this codebase.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("HYDROGEN_LOG_FILE_PATH"); v != "" {
		c.File.Path = v
	}
	if v := os.Getenv("HYDROGEN_LOG_CONSOLE_LEVEL"); v != "" {
		c.Console.Default = severity.Parse(v, c.Console.Default)
	}
	if v := os.Getenv("HYDROGEN_LOG_FILE_LEVEL"); v != "" {
		c.File.Default = severity.Parse(v, c.File.Default)
	}
}
