// Package config loads the privacy analyzer's process configuration
// entirely from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config is the fully resolved process configuration.
type Config struct {
	Server  ServerConfig
	Queue   QueueConfig
	DB      DatabaseConfig
	Redis   RedisConfig
	Logging LoggingConfig
	Service ServiceConfig
}

// ServerConfig controls the HTTP front end.
type ServerConfig struct {
	Port       int
	CORSOrigin string
}

// QueueConfig controls the worker pool.
type QueueConfig struct {
	WorkerConcurrency int
	// MetricsPort serves /metrics and /health for the worker process,
	// which does not mount the Poll API's own router.
	MetricsPort int
}

// DatabaseConfig carries the Postgres connection string.
type DatabaseConfig struct {
	URL string
}

// RedisConfig carries the Redis connection string backing the dedup
// coordinator and work queue.
type RedisConfig struct {
	URL string
}

// LoggingConfig controls the arbor logger's output shaping.
type LoggingConfig struct {
	Environment string // "development" or "production"
}

// ServiceConfig names the process for logs/metrics.
type ServiceConfig struct {
	Name string
}

// Load reads the process configuration from the environment, applying the
// defaults documented in spec §6, and validates the required variables are
// present.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:       envInt("PORT", 8000),
			CORSOrigin: envString("CORS_ORIGIN", "http://localhost:5173"),
		},
		Queue: QueueConfig{
			WorkerConcurrency: envInt("WORKER_CONCURRENCY", 2),
			MetricsPort:       envInt("WORKER_METRICS_PORT", 9100),
		},
		DB: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Logging: LoggingConfig{
			Environment: envString("ENVIRONMENT", "development"),
		},
		Service: ServiceConfig{
			Name: envString("SERVICE_NAME", "privacy-analyzer"),
		},
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.Queue.WorkerConcurrency <= 0 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be greater than 0, got %d", cfg.Queue.WorkerConcurrency)
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// IsProduction reports whether the process is configured for production
// logging (info level) rather than development (debug level).
func (c *Config) IsProduction() bool {
	return c.Logging.Environment == "production"
}
