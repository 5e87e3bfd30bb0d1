package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Emerald HWS daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Emerald   EmeraldConfig   `yaml:"emerald"`
	Session   SessionConfig   `yaml:"session"`
	AWSIoT    AWSIoTConfig    `yaml:"aws_iot"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmeraldConfig contains the vendor account and REST API settings.
type EmeraldConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	// APIURL is the base URL of the customer API, without a trailing slash.
	APIURL string `yaml:"api_url"`

	// RequestTimeout bounds each REST call (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// App identifies this client to the vendor the way the mobile app does.
	App EmeraldAppConfig `yaml:"app"`
}

// EmeraldAppConfig mirrors the identity fields the vendor's sign-in endpoint expects.
type EmeraldAppConfig struct {
	Version        string `yaml:"version"`
	DeviceName     string `yaml:"device_name"`
	DeviceOS       string `yaml:"device_os_version"`
	DeviceType     string `yaml:"device_type"`
	UserAgent      string `yaml:"user_agent"`
	AcceptLanguage string `yaml:"accept_language"`
}

// SessionConfig contains the messaging session lifecycle settings.
type SessionConfig struct {
	// ConnectionTimeoutMinutes is the scheduled reconnect interval.
	// 0 disables scheduled reconnects; other values below 5 are raised to 5.
	ConnectionTimeoutMinutes int `yaml:"connection_timeout_minutes"`

	// HealthCheckMinutes is the message-activity check interval.
	// 0 or negative disables the health check; values below 5 are raised to 5.
	HealthCheckMinutes int `yaml:"health_check_minutes"`

	// TopicPrefix is prepended to the from_gw/to_gw device topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// AWSIoTConfig contains the managed pub/sub endpoint settings.
type AWSIoTConfig struct {
	// Endpoint is the AWS IoT data endpoint host. The region is derived from it.
	Endpoint string `yaml:"endpoint"`

	// IdentityPoolID is the Cognito identity pool issuing unauthenticated credentials.
	IdentityPoolID string `yaml:"identity_pool_id"`

	// ClientIDPrefix is combined with a random UUID for each MQTT session.
	ClientIDPrefix string `yaml:"client_id_prefix"`

	// KeepAlive is the MQTT keepalive interval (seconds).
	KeepAlive int `yaml:"keep_alive"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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
// Environment variables follow the pattern: EMERALD_SECTION_KEY
// For example: EMERALD_EMAIL, EMERALD_INFLUXDB_TOKEN
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

// Default returns a Config populated with the vendor endpoints and
// the lifecycle defaults (12h scheduled reconnect, 1h health check).
func Default() *Config {
	return &Config{
		Emerald: EmeraldConfig{
			APIURL:         "https://api.emerald-ems.com.au/api/v1",
			RequestTimeout: 30,
			App: EmeraldAppConfig{
				Version:        "2.5.3",
				DeviceName:     "iPhone15,2",
				DeviceOS:       "17.2.1",
				DeviceType:     "iOS",
				UserAgent:      "EmeraldPlanet/2.5.3 (com.emerald-ems.customer; build:5; iOS 17.2.1) Alamofire/5.4.1",
				AcceptLanguage: "en-GB;q=1.0, en-AU;q=0.9",
			},
		},
		Session: SessionConfig{
			ConnectionTimeoutMinutes: 720,
			HealthCheckMinutes:       60,
			TopicPrefix:              "ep/heat_pump",
		},
		AWSIoT: AWSIoTConfig{
			Endpoint:       "a13v32g67itvz9-ats.iot.ap-southeast-2.amazonaws.com",
			IdentityPoolID: "ap-southeast-2:f5bbb02c-c00e-4f10-acb3-e7d1b05268e8",
			ClientIDPrefix: "emeraldhws",
			KeepAlive:      60,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8780,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EMERALD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Account
	if v := os.Getenv("EMERALD_EMAIL"); v != "" {
		cfg.Emerald.Email = v
	}
	if v := os.Getenv("EMERALD_PASSWORD"); v != "" {
		cfg.Emerald.Password = v
	}

	// API
	if v := os.Getenv("EMERALD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("EMERALD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Emerald.Email == "" {
		errs = append(errs, "emerald.email is required (set EMERALD_EMAIL environment variable)")
	}
	if c.Emerald.Password == "" {
		errs = append(errs, "emerald.password is required (set EMERALD_PASSWORD environment variable)")
	}
	if c.Emerald.APIURL == "" {
		errs = append(errs, "emerald.api_url is required")
	}

	if c.Session.TopicPrefix == "" {
		errs = append(errs, "session.topic_prefix is required")
	}

	if c.AWSIoT.Endpoint == "" {
		errs = append(errs, "aws_iot.endpoint is required")
	} else if _, err := c.AWSIoT.Region(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.AWSIoT.IdentityPoolID == "" {
		errs = append(errs, "aws_iot.identity_pool_id is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Region derives the AWS region from the IoT endpoint host,
// e.g. "xxxx-ats.iot.ap-southeast-2.amazonaws.com" → "ap-southeast-2".
func (c AWSIoTConfig) Region() (string, error) {
	parts := strings.Split(c.Endpoint, ".")
	if len(parts) < 4 || parts[1] != "iot" || parts[2] == "" {
		return "", fmt.Errorf("aws_iot.endpoint %q does not contain a region", c.Endpoint)
	}
	return parts[2], nil
}

// GetRequestTimeout returns the REST request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Emerald.RequestTimeout) * time.Second
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
