package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Missing role declaration policies for protected routes.
const (
	MissingRolesDeny  = "deny"
	MissingRolesAllow = "allow"
)

// Config is the root configuration structure for the catalog session client.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Client     ClientConfig     `yaml:"client"`
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Console    ConsoleConfig    `yaml:"console"`
	Navigation NavigationConfig `yaml:"navigation"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ClientConfig identifies this client instance.
type ClientConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ServerConfig describes the remote catalog API that issues credentials.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// StoreConfig contains persistent credential store settings.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	Namespace   string `yaml:"namespace"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// AuditRetention is how many days of audit entries survive startup
	// pruning. Zero keeps everything.
	AuditRetention int `yaml:"audit_retention"`
}

// ConsoleConfig contains the local navigation console HTTP settings.
type ConsoleConfig struct {
	Host         string               `yaml:"host"`
	Port         int                  `yaml:"port"`
	Timeouts     ConsoleTimeoutConfig `yaml:"timeouts"`
	CORS         CORSConfig           `yaml:"cors"`
	WebSocket    WebSocketConfig      `yaml:"websocket"`
	PublicEntry  string               `yaml:"public_entry"`
	Unauthorized string               `yaml:"unauthorized"`
}

// ConsoleTimeoutConfig contains HTTP timeout settings (seconds).
type ConsoleTimeoutConfig struct {
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

// WebSocketConfig contains settings for the identity feed.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// NavigationConfig controls route gate policy.
type NavigationConfig struct {
	// MissingRoles decides what a role gate does when a route declares no
	// role set at all: "deny" (default) or "allow".
	MissingRoles string `yaml:"missing_roles"`
}

// MQTTConfig contains MQTT broker connection settings for the identity bus.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for auth telemetry.
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
// Environment variables follow the pattern: CATALOG_SECTION_KEY
// For example: CATALOG_SERVER_BASE_URL, CATALOG_STORE_PATH
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

	// The credential namespace follows the API origin unless set explicitly.
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = cfg.Server.BaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Client: ClientConfig{
			ID:   "catalog-client-001",
			Name: "Catalog Client",
		},
		Server: ServerConfig{
			BaseURL: "http://localhost:3000/api",
			Timeout: 10,
		},
		Store: StoreConfig{
			Driver:         StoreDriverSQLite,
			Path:           "./data/session.db",
			WALMode:        true,
			BusyTimeout:    5,
			AuditRetention: 90,
		},
		Console: ConsoleConfig{
			Host: "127.0.0.1",
			Port: 4200,
			Timeouts: ConsoleTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				Path:           "/ws/identity",
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
			},
			PublicEntry:  "/auth/login",
			Unauthorized: "/unauthorized",
		},
		Navigation: NavigationConfig{
			MissingRoles: MissingRolesDeny,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "catalog-client-001",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "catalog",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CATALOG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("CATALOG_SERVER_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("CATALOG_SERVER_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Timeout = n
		}
	}

	// Store
	if v := os.Getenv("CATALOG_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("CATALOG_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("CATALOG_STORE_NAMESPACE"); v != "" {
		cfg.Store.Namespace = v
	}
	if v := os.Getenv("CATALOG_STORE_AUDIT_RETENTION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.AuditRetention = n
		}
	}

	// Console
	if v := os.Getenv("CATALOG_CONSOLE_HOST"); v != "" {
		cfg.Console.Host = v
	}
	if v := os.Getenv("CATALOG_CONSOLE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Console.Port = n
		}
	}

	// Navigation
	if v := os.Getenv("CATALOG_NAVIGATION_MISSING_ROLES"); v != "" {
		cfg.Navigation.MissingRoles = v
	}

	// MQTT
	if v := os.Getenv("CATALOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CATALOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CATALOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CATALOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Client.ID == "" {
		errs = append(errs, "client.id is required")
	}

	// Server validation
	if c.Server.BaseURL == "" {
		errs = append(errs, "server.base_url is required")
	} else if u, err := url.Parse(c.Server.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "server.base_url must be an absolute URL")
	}
	if c.Server.Timeout < 0 {
		errs = append(errs, "server.timeout must not be negative")
	}

	// Store validation
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case StoreDriverMemory:
	default:
		errs = append(errs, "store.driver must be sqlite or memory")
	}
	if c.Store.AuditRetention < 0 {
		errs = append(errs, "store.audit_retention must not be negative")
	}

	// Console validation
	if c.Console.Port < 1 || c.Console.Port > 65535 {
		errs = append(errs, "console.port must be between 1 and 65535")
	}
	if !strings.HasPrefix(c.Console.PublicEntry, "/") {
		errs = append(errs, "console.public_entry must be an absolute path")
	}
	if !strings.HasPrefix(c.Console.Unauthorized, "/") {
		errs = append(errs, "console.unauthorized must be an absolute path")
	}
	if c.Console.PublicEntry == c.Console.Unauthorized {
		errs = append(errs, "console.unauthorized must differ from console.public_entry")
	}

	// Navigation validation
	switch c.Navigation.MissingRoles {
	case MissingRolesDeny, MissingRolesAllow:
	default:
		errs = append(errs, "navigation.missing_roles must be deny or allow")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetServerTimeout returns the remote exchange timeout as a Duration.
func (c *Config) GetServerTimeout() time.Duration {
	return time.Duration(c.Server.Timeout) * time.Second
}

// ReadTimeout converts the configured seconds to a Duration.
func (t ConsoleTimeoutConfig) ReadTimeout() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteTimeout converts the configured seconds to a Duration.
func (t ConsoleTimeoutConfig) WriteTimeout() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleTimeout converts the configured seconds to a Duration.
func (t ConsoleTimeoutConfig) IdleTimeout() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
