// Package config provides configuration management for the Waverly storefront
// data engine. Configuration can be loaded from YAML files and environment
// variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address in host:port format.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database connection settings.
// Supports both SQLite (embedded, default) and PostgreSQL backends.
type DatabaseConfig struct {
	// Driver specifies the database driver: "sqlite" or "postgres".
	// Default is "sqlite" for on-device deployments.
	Driver string `mapstructure:"driver"`

	// SQLite settings (used when Driver is "sqlite")
	Path            string `mapstructure:"path"`             // Path to SQLite database file
	JournalMode     string `mapstructure:"journal_mode"`     // WAL, DELETE, TRUNCATE, etc.
	BusyTimeout     int    `mapstructure:"busy_timeout"`     // Milliseconds to wait for locks
	CacheSize       int    `mapstructure:"cache_size"`       // Page cache size (negative = KB)
	SynchronousMode string `mapstructure:"synchronous_mode"` // NORMAL, FULL, OFF

	// PostgreSQL settings (used when Driver is "postgres")
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// IsEmbedded returns true if using an embedded database (SQLite).
func (c DatabaseConfig) IsEmbedded() bool {
	return c.Driver == "sqlite"
}

// RedisConfig holds Redis connection settings, used for the optional
// Redis-backed durable session scope.
type RedisConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Enabled     bool          `mapstructure:"enabled"`
}

// Addr returns the Redis address in host:port format.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	// DurableBackend selects the durable scope backend: "file" or "redis".
	// The short-lived scope is always in-memory.
	DurableBackend string `mapstructure:"durable_backend"`

	// FilePath is the path of the durable scope file (file backend).
	FilePath string `mapstructure:"file_path"`

	// KeyPrefix namespaces keys in shared backends (redis).
	KeyPrefix string `mapstructure:"key_prefix"`

	// EncryptionKey, when set, encrypts durable scope values at rest with
	// AES-256-GCM. Must be 64 hex characters (32 bytes). Generate one with
	// the admin keygen command. Changing the key orphans existing values.
	EncryptionKey string `mapstructure:"encryption_key"`
}

// CacheConfig holds user lookup cache settings.
type CacheConfig struct {
	// Enabled turns on in-memory caching of single-user lookups.
	Enabled bool `mapstructure:"enabled"`

	// TTL is how long a cached user entry stays valid.
	TTL time.Duration `mapstructure:"ttl"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Hasher selects the password hashing scheme: "legacy" (deterministic
	// SHA-256 with the fixed application salt, matching existing stored
	// hashes) or "bcrypt". Legacy is a documented weakness kept for
	// compatibility; switching to bcrypt invalidates stored hashes.
	Hasher string `mapstructure:"hasher"`

	// Salt is the fixed application-wide salt used by the legacy hasher.
	Salt string `mapstructure:"salt"`

	// BcryptCost is the cost parameter for the bcrypt hasher.
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// BackupConfig holds export/backup sink settings.
type BackupConfig struct {
	// Sink selects the export destination: "file" or "s3".
	Sink string `mapstructure:"sink"`

	// Dir is the directory for file exports.
	Dir string `mapstructure:"dir"`

	// S3 holds the S3 sink settings.
	S3 S3BackupConfig `mapstructure:"s3"`
}

// S3BackupConfig holds S3 sink settings.
type S3BackupConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled determines if metrics collection is active.
	Enabled bool `mapstructure:"enabled"`

	// Path is the URL path for the metrics endpoint.
	Path string `mapstructure:"path"`
}

// Load reads configuration from the specified file and environment variables.
// Environment variables take precedence over file values.
// Environment variables are prefixed with WAVERLY_ and use _ as separator.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix("WAVERLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file configuration
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/waverly")
	}

	// Read config file (optional - environment variables can be used instead)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is acceptable - use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8600)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/waverly.db")
	v.SetDefault("database.journal_mode", "WAL")
	v.SetDefault("database.busy_timeout", 5000)
	v.SetDefault("database.cache_size", -2000)
	v.SetDefault("database.synchronous_mode", "NORMAL")
	// PostgreSQL defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "waverly")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "waverly")
	v.SetDefault("database.ssl_mode", "prefer")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.enabled", false)

	// Session defaults
	v.SetDefault("session.durable_backend", "file")
	v.SetDefault("session.file_path", "./data/session.json")
	v.SetDefault("session.key_prefix", "waverly")
	v.SetDefault("session.encryption_key", "")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)

	// Auth defaults
	v.SetDefault("auth.hasher", "legacy")
	v.SetDefault("auth.salt", "mobile-store-salt")
	v.SetDefault("auth.bcrypt_cost", 10)

	// Backup defaults
	v.SetDefault("backup.sink", "file")
	v.SetDefault("backup.dir", "./data/exports")
	v.SetDefault("backup.s3.region", "us-east-1")
	v.SetDefault("backup.s3.prefix", "waverly-exports")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	// Validate database configuration
	validDrivers := map[string]bool{"postgres": true, "sqlite": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'postgres'")
	}

	if c.Database.Driver == "sqlite" {
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite driver")
		}
	} else if c.Database.Driver == "postgres" {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for postgres driver")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required for postgres driver")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for postgres driver")
		}
	}

	// Validate session configuration
	validBackends := map[string]bool{"file": true, "redis": true}
	if !validBackends[c.Session.DurableBackend] {
		return fmt.Errorf("session.durable_backend must be 'file' or 'redis'")
	}
	if c.Session.DurableBackend == "file" && c.Session.FilePath == "" {
		return fmt.Errorf("session.file_path is required for file backend")
	}
	if c.Session.DurableBackend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("session.durable_backend 'redis' requires redis.enabled")
	}
	if key := c.Session.EncryptionKey; key != "" && len(key) != 64 {
		return fmt.Errorf("session.encryption_key must be 64 hex characters")
	}

	// Validate cache configuration
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}

	// Validate auth configuration
	validHashers := map[string]bool{"legacy": true, "bcrypt": true}
	if !validHashers[c.Auth.Hasher] {
		return fmt.Errorf("auth.hasher must be 'legacy' or 'bcrypt'")
	}
	if c.Auth.Hasher == "legacy" && c.Auth.Salt == "" {
		return fmt.Errorf("auth.salt is required for the legacy hasher")
	}

	// Validate backup configuration
	validSinks := map[string]bool{"file": true, "s3": true}
	if !validSinks[c.Backup.Sink] {
		return fmt.Errorf("backup.sink must be 'file' or 's3'")
	}
	if c.Backup.Sink == "s3" && c.Backup.S3.Bucket == "" {
		return fmt.Errorf("backup.s3.bucket is required for the s3 sink")
	}

	// Validate logging configuration
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error.
// Useful for main function initialization.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
