package config

import (
	"errors"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Credentials     CredentialsConfig `yaml:"credentials"`
	Hue             HueConfig         `yaml:"hue"`
	Discovery       DiscoveryConfig   `yaml:"discovery"`
	Pairing         PairingConfig     `yaml:"pairing"`
	Server          ServerConfig      `yaml:"server"`
	Database        DatabaseConfig    `yaml:"database"`
	Ledger          LedgerConfig      `yaml:"ledger"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	Log             LogConfig         `yaml:"log"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// CredentialsConfig points at the persisted bridge credential
type CredentialsConfig struct {
	Path string `yaml:"path"`
}

// HueConfig contains Hue bridge connection settings
type HueConfig struct {
	Bridge  string   `yaml:"bridge"`  // Skip discovery and register against this address
	Timeout Duration `yaml:"timeout"` // HTTP timeout for Hue API requests
}

// DiscoveryConfig contains bridge discovery settings
type DiscoveryConfig struct {
	Timeout       Duration `yaml:"timeout"` // mDNS listen window
	DisableIPv6   bool     `yaml:"disable_ipv6"`
	CloudFallback bool     `yaml:"cloud_fallback"` // Ask discovery.meethue.com when mDNS finds nothing
}

// PairingConfig contains registration settings
type PairingConfig struct {
	AppName       string   `yaml:"app_name"`
	RetryInterval Duration `yaml:"retry_interval"`
	Timeout       Duration `yaml:"timeout"`       // 0 = retry until interrupted
	IdentityPath  string   `yaml:"identity_path"` // Persisted client id used when no MAC address is available
}

// ServerConfig contains HTTP gateway settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"` // Empty disables the command ledger
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"` // 0 or less keeps entries forever
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"use_json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return c.Level
}

// LedgerEnabled reports whether a database path is configured
func (c *Config) LedgerEnabled() bool {
	return c.Database.Path != ""
}

// Retention returns the ledger retention as a duration
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
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

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when the file does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Parse(nil)
	}
	return cfg, err
}

// Parse expands environment variables in data, decodes it and applies defaults
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	// Defaults whose zero value is meaningful are preset so the file can override them.
	cfg := Config{
		Log:    LogConfig{Colors: true},
		Ledger: LedgerConfig{RetentionDays: 30},
	}
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Credentials.Path == "" {
		cfg.Credentials.Path = "bridge_info.json"
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(10 * time.Second)
	}

	// Discovery defaults
	if cfg.Discovery.Timeout == 0 {
		cfg.Discovery.Timeout = Duration(15 * time.Second)
	}

	// Pairing defaults
	if cfg.Pairing.AppName == "" {
		cfg.Pairing.AppName = "huegate"
	}
	if cfg.Pairing.RetryInterval == 0 {
		cfg.Pairing.RetryInterval = Duration(2 * time.Second)
	}
	if cfg.Pairing.IdentityPath == "" {
		cfg.Pairing.IdentityPath = "client_id"
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}

	// Event bus defaults
	if cfg.EventBus.Workers <= 0 {
		cfg.EventBus.Workers = 2
	}
	if cfg.EventBus.QueueSize <= 0 {
		cfg.EventBus.QueueSize = 100
	}

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
