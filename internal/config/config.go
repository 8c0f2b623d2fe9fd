package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the bridge configuration.
const (
	DefaultHTTPPort          = 8080
	DefaultHeartbeatInterval = 10 * time.Second
	DefaultStartupGrace      = 30 * time.Second
	DefaultOperationTimeout  = 30 * time.Second
)

// Config holds the bridge configuration parsed from the `bridge:` section
// of config.yaml.
type Config struct {
	Bridge BridgeConfig `yaml:"bridge"`
}

// BridgeConfig holds all bridge settings.
type BridgeConfig struct {
	// ListenAddr is the interface the HTTP server binds to. Empty means
	// all interfaces.
	ListenAddr string `yaml:"listen_addr"`

	// HTTPPort is the port the REST API and worker WebSocket listen on
	// (default 8080).
	HTTPPort int `yaml:"http_port"`

	// HeartbeatInterval is the cadence the worker is expected to send
	// heartbeats at (default 10s).
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// StartupGrace suppresses heartbeat-based health downgrades for this
	// long after process start and after each attach (default 30s).
	StartupGrace time.Duration `yaml:"startup_grace"`

	// QueueMaxDepth bounds the backpressure queue. Zero means unbounded.
	QueueMaxDepth int `yaml:"queue_max_depth"`

	// Timeouts controls per-operation deadlines.
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig holds the default operation deadline and per-kind
// overrides. This section hot-reloads; see Watch.
type TimeoutConfig struct {
	// Default applies to any kind without an override (default 30s).
	Default time.Duration `yaml:"default"`

	// PerKind overrides the deadline for specific operation kinds, e.g.
	// "export_png: 2m".
	PerKind map[string]time.Duration `yaml:"per_kind"`
}

// Load reads and parses the config file at path. Missing fields are
// filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridge config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("bridge config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("bridge config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Bridge: BridgeConfig{
			HTTPPort:          DefaultHTTPPort,
			HeartbeatInterval: DefaultHeartbeatInterval,
			StartupGrace:      DefaultStartupGrace,
			Timeouts: TimeoutConfig{
				Default: DefaultOperationTimeout,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	b := cfg.Bridge
	if b.HTTPPort <= 0 || b.HTTPPort > 65535 {
		return fmt.Errorf("bridge.http_port %d is out of range [1, 65535]", b.HTTPPort)
	}
	if b.HeartbeatInterval <= 0 {
		return fmt.Errorf("bridge.heartbeat_interval must be positive")
	}
	if b.StartupGrace < 0 {
		return fmt.Errorf("bridge.startup_grace must not be negative")
	}
	if b.QueueMaxDepth < 0 {
		return fmt.Errorf("bridge.queue_max_depth must not be negative")
	}
	if b.Timeouts.Default <= 0 {
		return fmt.Errorf("bridge.timeouts.default must be positive")
	}
	for kind, d := range b.Timeouts.PerKind {
		if d <= 0 {
			return fmt.Errorf("bridge.timeouts.per_kind[%q] must be positive", kind)
		}
	}
	return nil
}
