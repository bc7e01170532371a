package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the kiosk agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database     DatabaseConfig     `yaml:"database"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Session      SessionConfig      `yaml:"session"`
	Renderer     RendererConfig     `yaml:"renderer"`
	Commands     CommandsConfig     `yaml:"commands"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig contains SQLite settings-store configuration.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ProvisioningConfig contains the shared provisioning broker settings.
// Unprovisioned devices connect here to exchange a customer code for a
// device-specific broker configuration.
type ProvisioningConfig struct {
	Broker BrokerConfig `yaml:"broker"`

	// ApprovalTimeout bounds the wait for human approval.
	// Zero means wait indefinitely.
	ApprovalTimeout time.Duration `yaml:"approval_timeout"`

	// ResetDelay is how long a failure is held before the engine
	// returns to code entry.
	ResetDelay time.Duration `yaml:"reset_delay"`
}

// BrokerConfig contains MQTT broker connection details.
type BrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SessionConfig contains the post-provisioning device session settings.
type SessionConfig struct {
	QoS               int             `yaml:"qos"`
	TelemetryInterval time.Duration   `yaml:"telemetry_interval"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains MQTT reconnection settings.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// RendererConfig contains settings for the supervised display renderer process.
type RendererConfig struct {
	// Binary is the path to the renderer executable. Empty disables
	// supervision; display commands are then relayed to a no-op surface.
	Binary string `yaml:"binary"`

	// Args are command-line arguments passed to the renderer.
	Args []string `yaml:"args"`

	// RestartOnFailure enables automatic restart when the renderer exits unexpectedly.
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelay is the time to wait before restarting after a failure.
	RestartDelay time.Duration `yaml:"restart_delay"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`
}

// CommandsConfig contains command-execution policy.
type CommandsConfig struct {
	// ShellAllow is the allow-list of command prefixes for runShell.
	ShellAllow []string `yaml:"shell_allow"`

	// UpdateDir is the directory update downloads are written to.
	UpdateDir string `yaml:"update_dir"`
}

// InfluxDBConfig contains the optional telemetry mirror settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KIOSK_SECTION_KEY
// For example: KIOSK_DATABASE_PATH, KIOSK_PROVISIONING_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/kiosk.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Provisioning: ProvisioningConfig{
			Broker: BrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			ApprovalTimeout: 0, // wait for a human approver
			ResetDelay:      5 * time.Second,
		},
		Session: SessionConfig{
			QoS:               1,
			TelemetryInterval: time.Minute,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Renderer: RendererConfig{
			RestartOnFailure:   true,
			RestartDelay:       5 * time.Second,
			MaxRestartAttempts: 0,
		},
		Commands: CommandsConfig{
			ShellAllow: []string{
				"uptime", "date", "df", "free", "uname",
				"id", "cat /proc", "ip addr", "hostname",
			},
			UpdateDir: "./data/updates",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KIOSK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("KIOSK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Provisioning broker
	if v := os.Getenv("KIOSK_PROVISIONING_HOST"); v != "" {
		cfg.Provisioning.Broker.Host = v
	}
	if v := os.Getenv("KIOSK_PROVISIONING_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Provisioning.Broker.Port = port
		}
	}
	if v := os.Getenv("KIOSK_PROVISIONING_USERNAME"); v != "" {
		cfg.Provisioning.Broker.Username = v
	}
	if v := os.Getenv("KIOSK_PROVISIONING_PASSWORD"); v != "" {
		cfg.Provisioning.Broker.Password = v
	}

	// InfluxDB
	if v := os.Getenv("KIOSK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Provisioning validation
	if c.Provisioning.Broker.Host == "" {
		errs = append(errs, "provisioning.broker.host is required")
	}
	if c.Provisioning.Broker.Port < 1 || c.Provisioning.Broker.Port > 65535 {
		errs = append(errs, "provisioning.broker.port must be between 1 and 65535")
	}

	// Session validation
	if c.Session.QoS < 0 || c.Session.QoS > 2 {
		errs = append(errs, "session.qos must be 0, 1, or 2")
	}
	if c.Session.TelemetryInterval <= 0 {
		errs = append(errs, "session.telemetry_interval must be positive")
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb.enabled is true")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
