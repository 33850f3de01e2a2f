package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the frame transport.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Logging   LoggingConfig   `yaml:"logging"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

// TransportConfig selects the transport implementation and its connection options.
type TransportConfig struct {
	// Kind is the registry name of the transport to open (e.g. "mqtt").
	Kind string `yaml:"kind"`

	// URL is the broker address, e.g. "tcp://localhost:1883".
	URL string `yaml:"url"`

	// Device is the logical device identifier. It namespaces all topics.
	Device string `yaml:"device"`

	Login    string `yaml:"login"`
	Password string `yaml:"password"`

	// Multi appends a random suffix to the client identity so several
	// sessions may share one device.
	Multi bool `yaml:"multi"`

	AutoReconnect bool `yaml:"auto_reconnect"`

	// KeepAlive is the broker keep-alive interval.
	// Default: 15s
	KeepAlive time.Duration `yaml:"keep_alive"`

	// ReconnectPeriod is the delay between reconnect attempts when
	// AutoReconnect is enabled.
	// Default: 1s
	ReconnectPeriod time.Duration `yaml:"reconnect_period"`

	// ConnectTimeout bounds a single connection attempt.
	// Default: 30s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MaxPacketSize is the ceiling used when coalescing outbound frames.
	// Default: 128
	MaxPacketSize int `yaml:"max_packet_size"`

	// StrictPacketSize rejects single frames that cannot fit in one
	// publication instead of publishing them oversized.
	StrictPacketSize bool `yaml:"strict_packet_size"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// InfluxDBConfig contains InfluxDB connection settings for transport telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SimulatorConfig controls the embedded broker and simulated device used
// for local runs.
type SimulatorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// Status is the value published on the device status topic once the
	// simulated device is up.
	Status string `yaml:"status"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FRAMETRANSPORT_KEY
// For example: FRAMETRANSPORT_URL, FRAMETRANSPORT_DEVICE
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the documented defaults.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:            "mqtt",
			URL:             "tcp://localhost:1883",
			KeepAlive:       15 * time.Second,
			ReconnectPeriod: 1 * time.Second,
			ConnectTimeout:  30 * time.Second,
			MaxPacketSize:   128,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Simulator: SimulatorConfig{
			Host:   "127.0.0.1",
			Port:   1883,
			Status: "OK",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FRAMETRANSPORT_URL"); v != "" {
		cfg.Transport.URL = v
	}
	if v := os.Getenv("FRAMETRANSPORT_DEVICE"); v != "" {
		cfg.Transport.Device = v
	}
	if v := os.Getenv("FRAMETRANSPORT_LOGIN"); v != "" {
		cfg.Transport.Login = v
	}
	if v := os.Getenv("FRAMETRANSPORT_PASSWORD"); v != "" {
		cfg.Transport.Password = v
	}

	if v := os.Getenv("FRAMETRANSPORT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Transport.Kind == "" {
		errs = append(errs, "transport.kind is required")
	}
	if c.Transport.URL == "" {
		errs = append(errs, "transport.url is required")
	}
	if c.Transport.Device == "" {
		errs = append(errs, "transport.device is required (set FRAMETRANSPORT_DEVICE environment variable)")
	} else if strings.ContainsAny(c.Transport.Device, "+#") {
		errs = append(errs, "transport.device must not contain MQTT wildcards")
	}
	if c.Transport.MaxPacketSize < 1 {
		errs = append(errs, "transport.max_packet_size must be positive")
	}
	if c.Transport.KeepAlive < 0 || c.Transport.ConnectTimeout < 0 || c.Transport.ReconnectPeriod < 0 {
		errs = append(errs, "transport durations must not be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Simulator.Enabled && (c.Simulator.Port < 1 || c.Simulator.Port > 65535) {
		errs = append(errs, "simulator.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
