package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for DoorOpener Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API      APIConfig         `yaml:"api"`
	Pins     map[string]string `yaml:"pins"`
	Store    StoreConfig       `yaml:"store"`
	Audit    AuditConfig       `yaml:"audit"`
	Security SecurityConfig    `yaml:"security"`
	Actuator ActuatorConfig    `yaml:"actuator"`
	MQTT     MQTTConfig        `yaml:"mqtt"`
	InfluxDB InfluxDBConfig    `yaml:"influxdb"`
	Logging  LoggingConfig     `yaml:"logging"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
//
// The write timeout must exceed the maximum progressive delay (16s),
// otherwise throttled denials are cut off mid-response. Validate() enforces this.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	// Backend is "file" (JSON document, atomic rename) or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the JSON document path for the file backend.
	Path string `yaml:"path"`

	// Database configures the sqlite backend.
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// AuditConfig contains attempt-log settings.
type AuditConfig struct {
	// Path is the append-only attempt log file (one JSON record per line).
	Path string `yaml:"path"`

	// HistoryLimit caps how many records the admin log endpoint returns.
	HistoryLimit int `yaml:"history_limit"`
}

// SecurityConfig contains authentication and rate-limiting settings.
type SecurityConfig struct {
	Admin    AdminConfig    `yaml:"admin"`
	JWT      JWTConfig      `yaml:"jwt"`
	Limits   LimitsConfig   `yaml:"limits"`
	Identity IdentityConfig `yaml:"identity"`
}

// AdminConfig contains the admin dashboard credential.
type AdminConfig struct {
	// Password is either an Argon2id PHC string ($argon2id$...) or, for
	// small installs, a plain value compared in constant time.
	Password string `yaml:"password"`
}

// JWTConfig contains admin session token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	SessionTTLMins int    `yaml:"session_ttl"`
}

// LimitsConfig contains brute-force protection thresholds.
type LimitsConfig struct {
	// IPMaxAttempts is the failed-attempt threshold for the IP/fingerprint scope.
	IPMaxAttempts int `yaml:"ip_max_attempts"`

	// SessionMaxAttempts is the failed-attempt threshold for the session scope.
	SessionMaxAttempts int `yaml:"session_max_attempts"`

	// GlobalMaxAttempts is the process-wide circuit breaker within the window.
	GlobalMaxAttempts int `yaml:"global_max_attempts"`

	// BlockMinutes is how long a tripped IP or session scope stays blocked.
	BlockMinutes int `yaml:"block_minutes"`

	// GlobalWindowMinutes is the fixed window after which the global counter
	// resets to zero regardless of outcomes.
	GlobalWindowMinutes int `yaml:"global_window_minutes"`
}

// IdentityConfig contains federated-identity policy settings.
//
// The assertion itself is produced and verified by an external auth proxy;
// DoorOpener only consumes the already-verified claims.
type IdentityConfig struct {
	Enabled bool `yaml:"enabled"`

	// RequirePIN forces the PIN path even when a valid assertion is present.
	RequirePIN bool `yaml:"require_pin"`

	// AllowedGroup restricts identity access to members of this group.
	// Empty means any asserted identity is eligible.
	AllowedGroup string `yaml:"allowed_group"`
}

// ActuatorConfig contains Home Assistant gateway settings.
type ActuatorConfig struct {
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	OpenEntity    string `yaml:"open_entity"`
	BatteryEntity string `yaml:"battery_entity"`
	TimeoutSecs   int    `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings for event announcements.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains attempt-metric export settings.
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
// Environment variables follow the pattern: DOOROPENER_SECTION_KEY
// For example: DOOROPENER_ACTUATOR_TOKEN, DOOROPENER_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "./data/users.json",
			Database: DatabaseConfig{
				Path:        "./data/dooropener.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Audit: AuditConfig{
			Path:         "./logs/attempts.log",
			HistoryLimit: 500,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				SessionTTLMins: 30,
			},
			Limits: LimitsConfig{
				IPMaxAttempts:       5,
				SessionMaxAttempts:  3,
				GlobalMaxAttempts:   100,
				BlockMinutes:        5,
				GlobalWindowMinutes: 60,
			},
		},
		Actuator: ActuatorConfig{
			URL:         "http://homeassistant.local:8123",
			TimeoutSecs: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dooropener-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOOROPENER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("DOOROPENER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("DOOROPENER_DATABASE_PATH"); v != "" {
		cfg.Store.Database.Path = v
	}

	// Audit
	if v := os.Getenv("DOOROPENER_AUDIT_PATH"); v != "" {
		cfg.Audit.Path = v
	}

	// API
	if v := os.Getenv("DOOROPENER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Actuator (prefer env vars over config.yaml for the token)
	if v := os.Getenv("DOOROPENER_ACTUATOR_URL"); v != "" {
		cfg.Actuator.URL = v
	}
	if v := os.Getenv("DOOROPENER_ACTUATOR_TOKEN"); v != "" {
		cfg.Actuator.Token = v
	}

	// MQTT
	if v := os.Getenv("DOOROPENER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOOROPENER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOOROPENER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DOOROPENER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("DOOROPENER_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("DOOROPENER_ADMIN_PASSWORD"); v != "" {
		cfg.Security.Admin.Password = v
	}
}

// maxProgressiveDelaySecs is the cap on the progressive throttling delay.
// The API write timeout must leave room for a delayed denial to be written.
const maxProgressiveDelaySecs = 16

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Timeouts.Write <= maxProgressiveDelaySecs {
		errs = append(errs, "api.timeouts.write must exceed 16 seconds (progressive delay cap)")
	}

	switch c.Store.Backend {
	case "file":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the file backend")
		}
	case "sqlite":
		if c.Store.Database.Path == "" {
			errs = append(errs, "store.database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be \"file\" or \"sqlite\", got %q", c.Store.Backend))
	}

	if c.Audit.Path == "" {
		errs = append(errs, "audit.path is required")
	}

	if c.Security.Limits.IPMaxAttempts < 1 {
		errs = append(errs, "security.limits.ip_max_attempts must be at least 1")
	}
	if c.Security.Limits.SessionMaxAttempts < 1 {
		errs = append(errs, "security.limits.session_max_attempts must be at least 1")
	}
	if c.Security.Limits.GlobalMaxAttempts < 1 {
		errs = append(errs, "security.limits.global_max_attempts must be at least 1")
	}
	if c.Security.Limits.BlockMinutes < 1 {
		errs = append(errs, "security.limits.block_minutes must be at least 1")
	}
	if c.Security.Limits.GlobalWindowMinutes < 1 {
		errs = append(errs, "security.limits.global_window_minutes must be at least 1")
	}

	// Anyone who can forge an admin session can mint door credentials,
	// so the JWT secret gets the same treatment as the actuator token.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DOOROPENER_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}
	if c.Security.Admin.Password == "" {
		errs = append(errs, "security.admin.password is required (set DOOROPENER_ADMIN_PASSWORD environment variable)")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Actuator.OpenEntity == "" {
		errs = append(errs, "actuator.open_entity is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// BlockDuration returns how long a tripped scope stays blocked.
func (l LimitsConfig) BlockDuration() time.Duration {
	return time.Duration(l.BlockMinutes) * time.Minute
}

// GlobalWindow returns the fixed reset window for the global counter.
func (l LimitsConfig) GlobalWindow() time.Duration {
	return time.Duration(l.GlobalWindowMinutes) * time.Minute
}

// SessionTTL returns the admin session token lifetime.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMins <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(j.SessionTTLMins) * time.Minute
}

// Timeout returns the Home Assistant request timeout.
func (a ActuatorConfig) Timeout() time.Duration {
	if a.TimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.TimeoutSecs) * time.Second
}
