package config

import (
	"fmt"
	"time"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	ClientQueueSize int   `mapstructure:"client_queue_size" yaml:"client_queue_size"`
	// WSRateLimit caps inbound frames per connection per minute. Zero disables it.
	WSRateLimit int `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`

	DBDriver string `mapstructure:"db_driver" yaml:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn" yaml:"db_dsn"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`

	NATSURL           string `mapstructure:"nats_url" yaml:"nats_url"`
	NATSSubjectPrefix string `mapstructure:"nats_subject_prefix" yaml:"nats_subject_prefix"`

	ReconcileOnStart bool `mapstructure:"reconcile_on_start" yaml:"reconcile_on_start"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		MaxMessageBytes:   64 << 10,
		ClientQueueSize:   32,
		WSRateLimit:       600,
		DBDriver:          DriverSQLite,
		DBDSN:             "migchat.db",
		NATSSubjectPrefix: "migchat",
		ReconcileOnStart:  true,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
// Used for CLI flag overrides.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DBDriver != "" {
		c.DBDriver = other.DBDriver
	}
	if other.DBDSN != "" {
		c.DBDSN = other.DBDSN
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("max_message_bytes must be positive")
	}
	if c.ClientQueueSize <= 0 {
		return fmt.Errorf("client_queue_size must be positive")
	}
	if c.WSRateLimit < 0 {
		return fmt.Errorf("ws_rate_limit must not be negative")
	}
	return nil
}
