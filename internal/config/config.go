package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration. Values are resolved in three
// layers: compiled defaults, an optional YAML file ($CONFIG_FILE or
// config/atlas.yaml), then environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig controls the HTTP listener. Timeouts are in seconds.
type ServerConfig struct {
	Host         string `yaml:"host" env:"SERVER_HOST"`
	Port         int    `yaml:"port" env:"PORT"`
	ReadTimeout  int    `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout int    `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  int    `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
}

// DatabaseConfig controls the connection manager. Durations are in
// seconds; Keepalive 0 disables the background pinger. MaxOpenConns and
// MaxIdleConns default to 1 because the store session is not safe for
// concurrent statements.
type DatabaseConfig struct {
	Driver            string `yaml:"driver" env:"DB_DRIVER"`
	DSN               string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns      int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns      int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime   int    `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	ConnectRetries    int    `yaml:"connect_retries" env:"DB_CONNECT_RETRIES"`
	ConnectRetryDelay int    `yaml:"connect_retry_delay" env:"DB_CONNECT_RETRY_DELAY"`
	Keepalive         int    `yaml:"keepalive" env:"DB_KEEPALIVE_INTERVAL"`
	MigrateOnStart    bool   `yaml:"migrate_on_start" env:"DB_MIGRATE_ON_START"`
}

// LoggingConfig mirrors pkg/logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// CORSConfig holds the comma-separated browser origin allow-list.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// Origins returns the allow-list split and trimmed, empty entries dropped.
func (c CORSConfig) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// RateLimitConfig controls the optional transport-level limiter. The
// per-user activity gate in the database is always on; this one is off by
// default.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond int  `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int  `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// DefaultConfig returns the compiled defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
		},
		Database: DatabaseConfig{
			Driver:            "postgres",
			MaxOpenConns:      1,
			MaxIdleConns:      1,
			ConnMaxLifetime:   0,
			ConnectRetries:    5,
			ConnectRetryDelay: 1,
			Keepalive:         0,
			MigrateOnStart:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		CORS: CORSConfig{
			AllowedOrigins: "http://localhost:3000,http://127.0.0.1:5173",
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 10,
			Burst:             30,
		},
	}
}

// Load resolves the configuration from defaults, the optional YAML file
// and the environment, and validates the result.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_FILE")
	explicit := path != ""
	if path == "" {
		path = filepath.Join("config", "atlas.yaml")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case explicit || !os.IsNotExist(err):
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := envdecode.Decode(cfg); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with. DSN
// requiredness is checked at wiring time, not here, so tooling can load a
// partial configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Database.ConnectRetries < 1 {
		return fmt.Errorf("database connect_retries must be at least 1")
	}
	if c.Database.ConnectRetryDelay < 0 || c.Database.Keepalive < 0 || c.Database.ConnMaxLifetime < 0 {
		return fmt.Errorf("database durations must not be negative")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond < 1 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit requires positive requests_per_second and burst")
	}
	return nil
}
