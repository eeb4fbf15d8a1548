// Package config loads Gatekeeper's environment-driven configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every setting the process entrypoint needs to wire the
// registry, the PostgreSQL provider, the orchestrator, and the thin HTTP
// surface together.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Logging  LoggingConfig
	Otel     OtelConfig
}

// ServerConfig holds the thin HTTP entrypoint's listen settings.
type ServerConfig struct {
	Port            string
	Env             string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig is the admin connection the PostgreSQL provider opens
// its pool against.
type DatabaseConfig struct {
	Host            string
	Port            int
	Database        string
	AdminUser       string
	AdminPassword   string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig backs the idempotent job-replay cache.
type RedisConfig struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// SessionConfig bounds what the orchestrator will accept for a job.
type SessionConfig struct {
	MaxTTLMinutes    int
	RolePackVersion  string
	DefaultConnLimit int
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string
	Format string // json or console
}

// OtelConfig points the tracer at an OTLP-over-gRPC collector.
type OtelConfig struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	SampleFraction float64
}

// Load reads configuration from the environment. Unknown keys are
// ignored. Variable names are illustrative.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Env:             getEnv("ENV", "development"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("GATEKEEPER_DB_HOST", "localhost"),
			Port:            getIntEnv("GATEKEEPER_DB_PORT", 5432),
			Database:        getEnv("GATEKEEPER_DB_NAME", "postgres"),
			AdminUser:       getEnv("GATEKEEPER_DB_ADMIN_USER", "gatekeeper_admin"),
			AdminPassword:   getEnv("GATEKEEPER_DB_ADMIN_PASSWORD", ""),
			SSLMode:         getEnv("GATEKEEPER_DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("GATEKEEPER_DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("GATEKEEPER_DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationEnv("GATEKEEPER_DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", "redis://localhost:6379"),
			MaxRetries:   getIntEnv("REDIS_MAX_RETRIES", 3),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 5),
		},
		Session: SessionConfig{
			MaxTTLMinutes:    getIntEnv("GATEKEEPER_SESSION_MAX_TTL_MINUTES", 1440),
			RolePackVersion:  getEnv("GATEKEEPER_ROLE_PACK_VERSION", "pg-1.0.0"),
			DefaultConnLimit: getIntEnv("GATEKEEPER_DEFAULT_CONNECTION_LIMIT", 2),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Otel: OtelConfig{
			Enabled:        getBoolEnv("OTEL_ENABLED", false),
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "gatekeeper-agent"),
			SampleFraction: getFloatEnv("OTEL_SAMPLE_FRACTION", 1.0),
		},
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
