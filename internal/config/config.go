// Package config loads tool configuration from an optional YAML file, applies
// environment overrides, and carries the knobs every other component reads.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/pipewatch/pipewatch/internal/logging"
)

// EnvPrefix is the prefix for environment overrides (PIPEWATCH_...).
const EnvPrefix = "pipewatch"

type Config struct {
	Monitor MonitorConfig  `yaml:"monitor"`
	Output  OutputConfig   `yaml:"output"`
	Server  ServerConfig   `yaml:"server"`
	Logging logging.Config `yaml:"logging"`
}

// MonitorConfig controls discovery and session behavior.
type MonitorConfig struct {
	// Method selects the enumeration strategy: "fast", "native" or "external".
	Method string `yaml:"method" envconfig:"METHOD"`

	// Patterns are case-insensitive globs; a pipe is tracked when any of
	// them matches its name.
	Patterns []string `yaml:"patterns" envconfig:"PATTERNS"`

	// Interval is the time between enumeration ticks.
	Interval time.Duration `yaml:"interval" envconfig:"INTERVAL"`

	// ConnectTimeout bounds each session's client connect attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`

	// ListOnly enumerates once, renders, and exits without monitoring.
	ListOnly bool `yaml:"list_only" envconfig:"LIST_ONLY"`

	// DisableMessages keeps the add/remove tracking but never connects to
	// pipes, so no message events are produced.
	DisableMessages bool `yaml:"disable_messages" envconfig:"DISABLE_MESSAGES"`

	// ResolveOwners looks up PIDs embedded in new pipe names and records the
	// owning process as metadata.
	ResolveOwners bool `yaml:"resolve_owners" envconfig:"RESOLVE_OWNERS"`

	// ExternalTool is the listing utility used by the external method.
	ExternalTool string `yaml:"external_tool" envconfig:"EXTERNAL_TOOL"`
}

// OutputConfig controls rendering and event suppression.
type OutputConfig struct {
	// Format picks the list rendering: "table", "sections" or "csv".
	Format string `yaml:"format" envconfig:"FORMAT"`

	// Color toggles styled console output.
	Color bool `yaml:"color" envconfig:"COLOR"`

	// Quiet hides the per-session connect/disconnect lines.
	Quiet bool `yaml:"quiet" envconfig:"QUIET"`

	// HideErrors hides session-level failure events. Neither flag changes
	// the session state machine, only what is printed.
	HideErrors bool `yaml:"hide_errors" envconfig:"HIDE_ERRORS"`
}

// ServerConfig controls the optional live feed (websocket + HTTP API).
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Host    string `yaml:"host" envconfig:"HOST"`
	Port    int    `yaml:"port" envconfig:"PORT"`

	// BroadcastThrottle batches outgoing event frames: at most one frame is
	// flushed per period, so pipe churn bursts become a single frame.
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle" envconfig:"BROADCAST_THROTTLE"`

	// SnapshotInterval re-sends the full state periodically so reconnecting
	// clients converge without replaying every event.
	SnapshotInterval time.Duration `yaml:"snapshot_interval" envconfig:"SNAPSHOT_INTERVAL"`

	// MaxConns caps concurrent websocket clients; 0 means unlimited.
	MaxConns int `yaml:"max_conns" envconfig:"MAX_CONNS"`
}

func defaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			Method:         "fast",
			Patterns:       []string{"*"},
			Interval:       time.Second,
			ConnectTimeout: 2 * time.Second,
			ResolveOwners:  true,
			ExternalTool:   "pipelist",
		},
		Output: OutputConfig{
			Format: "table",
			Color:  true,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8844,
			BroadcastThrottle: 100 * time.Millisecond,
			SnapshotInterval:  5 * time.Second,
			MaxConns:          8,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. A missing file is an error; use LoadOrDefault when the file is
// optional.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := fromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault behaves like Load but falls back to the defaults (plus
// environment overrides) when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	cfg = defaultConfig()
	if err := fromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func fromEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot run with. Method and format names
// are validated where they are consumed (enumerator and renderer selection).
func (c *Config) Validate() error {
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.ConnectTimeout <= 0 {
		return fmt.Errorf("monitor.connect_timeout must be positive, got %s", c.Monitor.ConnectTimeout)
	}
	if len(c.Monitor.Patterns) == 0 {
		c.Monitor.Patterns = []string{"*"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// Addr returns the listen address for the live feed server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
