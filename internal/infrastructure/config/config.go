package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for EdgeFlow Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Remote    RemoteConfig    `yaml:"remote"`
	Storage   StorageConfig   `yaml:"storage"`
	Engine    EngineConfig    `yaml:"engine"`
	Watcher   WatcherConfig   `yaml:"watcher"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// InfluxDBConfig contains InfluxDB connection settings for execution metrics.
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

// RemoteConfig contains SSH session defaults and key material locations.
type RemoteConfig struct {
	// ConnectTimeout is the TCP/SSH handshake timeout in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	// DefaultPort is used when a host entry omits its port.
	DefaultPort int `yaml:"default_port"`
	// KeystoreDir is the directory holding private keys referenced by key id.
	KeystoreDir string `yaml:"keystore_dir"`
	// PackKeyFile is the 32-byte key used to seal .efpack config packs.
	PackKeyFile string `yaml:"pack_key_file"`
}

// StorageConfig contains template export/import locations.
type StorageConfig struct {
	// ExportDir is the removable-media directory for per-template files.
	// Empty disables the export tier.
	ExportDir string `yaml:"export_dir"`
	// LegacyFile is the old single-file template store, migrated on first read.
	LegacyFile string `yaml:"legacy_file"`
}

// EngineConfig contains action queue and executor settings.
type EngineConfig struct {
	QueueSize       int `yaml:"queue_size"`
	AdmissionWaitMS int `yaml:"admission_wait_ms"`
	SyncTimeoutSec  int `yaml:"sync_timeout_sec"`
	// RemoteSyncTimeoutSec applies to remote command and sequence kinds,
	// which legitimately run much longer than local actions.
	RemoteSyncTimeoutSec int `yaml:"remote_sync_timeout_sec"`
	MaxTemplates         int `yaml:"max_templates"`
}

// WatcherConfig contains service readiness watcher defaults.
type WatcherConfig struct {
	TimeoutSec      int `yaml:"timeout_sec"`
	CheckIntervalMS int `yaml:"check_interval_ms"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// Load reads the YAML file at path and validates the result. Defaults apply
// first, file values override them, and EDGEFLOW_SECTION_KEY environment
// variables (EDGEFLOW_DATABASE_PATH, EDGEFLOW_API_PORT, ...) override both.
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
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "EdgeFlow",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/edgeflow.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "edgeflow-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		Remote: RemoteConfig{
			ConnectTimeout: 10,
			DefaultPort:    22,
			KeystoreDir:    "./data/keys",
		},
		Storage: StorageConfig{
			LegacyFile: "./data/actions.json",
		},
		Engine: EngineConfig{
			QueueSize:            16,
			AdmissionWaitMS:      100,
			SyncTimeoutSec:       30,
			RemoteSyncTimeoutSec: 60,
			MaxTemplates:         64,
		},
		Watcher: WatcherConfig{
			TimeoutSec:      60,
			CheckIntervalMS: 3000,
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  15,
				RefreshTokenTTL: 1440,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: EDGEFLOW_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("EDGEFLOW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("EDGEFLOW_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("EDGEFLOW_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("EDGEFLOW_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("EDGEFLOW_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("EDGEFLOW_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("EDGEFLOW_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Remote
	if v := os.Getenv("EDGEFLOW_KEYSTORE_DIR"); v != "" {
		cfg.Remote.KeystoreDir = v
	}
	if v := os.Getenv("EDGEFLOW_PACK_KEY_FILE"); v != "" {
		cfg.Remote.PackKeyFile = v
	}

	// Storage
	if v := os.Getenv("EDGEFLOW_EXPORT_DIR"); v != "" {
		cfg.Storage.ExportDir = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("EDGEFLOW_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate collects every configuration problem into one error so the
// operator sees the full list on a failed start.
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Engine validation
	if c.Engine.QueueSize < 1 {
		errs = append(errs, "engine.queue_size must be at least 1")
	}
	if c.Engine.SyncTimeoutSec < 1 || c.Engine.RemoteSyncTimeoutSec < 1 {
		errs = append(errs, "engine sync timeouts must be at least 1 second")
	}

	// Watcher validation
	if c.Watcher.CheckIntervalMS < 100 {
		errs = append(errs, "watcher.check_interval_ms must be at least 100")
	}

	// Security validation - JWT secret is REQUIRED
	// Actions execute arbitrary commands on remote hosts. A forged token
	// would hand an attacker shell access to every registered host.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set EDGEFLOW_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
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

// AdmissionWait returns the queue admission wait as a Duration.
func (c *EngineConfig) AdmissionWait() time.Duration {
	return time.Duration(c.AdmissionWaitMS) * time.Millisecond
}

// SyncTimeout returns the synchronous execution wait as a Duration.
func (c *EngineConfig) SyncTimeout() time.Duration {
	return time.Duration(c.SyncTimeoutSec) * time.Second
}

// RemoteSyncTimeout returns the synchronous wait for remote kinds as a Duration.
func (c *EngineConfig) RemoteSyncTimeout() time.Duration {
	return time.Duration(c.RemoteSyncTimeoutSec) * time.Second
}

// Timeout returns the watcher default timeout as a Duration.
func (c *WatcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// CheckInterval returns the watcher default poll interval as a Duration.
func (c *WatcherConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMS) * time.Millisecond
}
