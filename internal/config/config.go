package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// KV backends
const (
	KVBackendSQLite = "sqlite"
	KVBackendRedis  = "redis"
)

// Config holds all configuration for the ladder server and CLI
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Ladders  LaddersConfig
	Autosave AutosaveConfig
	KV       KVConfig
	Client   ClientConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	APIKey         string
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration. An empty DSN selects the in-memory repository.
type DatabaseConfig struct {
	DSN           string
	MigrationsDir string
	MaxConns      int
}

// RedisConfig holds Redis configuration. An empty address disables Redis.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// LaddersConfig holds the ladder catalog configuration
type LaddersConfig struct {
	Dir   string
	Watch bool
}

// AutosaveConfig holds the periodic save configuration
type AutosaveConfig struct {
	Interval time.Duration
}

// KVConfig selects where the CLI keeps session state
type KVConfig struct {
	Backend    string
	SQLitePath string
}

// ClientConfig holds the API client configuration
type ClientConfig struct {
	BaseURL string
	APIKey  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			APIKey:         getEnv("API_KEY", ""),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MigrationsDir: getEnv("DATABASE_MIGRATIONS_DIR", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Ladders: LaddersConfig{
			Dir:   getEnv("LADDERS_DIR", "./ladders"),
			Watch: getEnvAsBool("LADDERS_WATCH", true),
		},
		Autosave: AutosaveConfig{
			Interval: getEnvAsDuration("AUTOSAVE_INTERVAL", 30*time.Second),
		},
		KV: KVConfig{
			Backend:    getEnv("KV_BACKEND", KVBackendSQLite),
			SQLitePath: getEnv("KV_SQLITE_PATH", defaultSQLitePath()),
		},
		Client: ClientConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
			APIKey:  getEnv("API_KEY", ""),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.MaxConns < 1 {
		return fmt.Errorf("invalid database max conns: %d", c.Database.MaxConns)
	}

	if c.Autosave.Interval <= 0 {
		return fmt.Errorf("autosave interval must be positive, got %s", c.Autosave.Interval)
	}

	switch c.KV.Backend {
	case KVBackendSQLite:
		if c.KV.SQLitePath == "" {
			return fmt.Errorf("KV_SQLITE_PATH is required for the sqlite backend")
		}
	case KVBackendRedis:
		if c.Redis.Address == "" {
			return fmt.Errorf("REDIS_ADDRESS is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown KV backend: %q", c.KV.Backend)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func defaultSQLitePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".ladderctl/session.sqlite"
	}
	return dir + "/ladderctl/session.sqlite"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
