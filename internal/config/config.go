package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the provisioning service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"NETPROV_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// AWS configuration
	AWS AWSConfig

	// Worker configuration
	Workers WorkerConfig

	// Provisioning behavior
	Provision ProvisionConfig
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// AWSConfig holds configuration for the EC2 provisioning client
type AWSConfig struct {
	Region string `env:"AWS_REGION" envDefault:"eu-west-1"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"5"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// ProvisionConfig holds provisioning lifecycle configuration
type ProvisionConfig struct {
	// RecordTTL bounds the lifetime of lock and request records. Expiry is
	// swept by the store, never by the application.
	RecordTTL time.Duration `env:"PROVISION_RECORD_TTL" envDefault:"24h"`

	// ReadyTimeout and ReadyInterval bound the post-creation readiness poll
	// of the network container. Timing out is best-effort, not fatal.
	ReadyTimeout  time.Duration `env:"PROVISION_READY_TIMEOUT" envDefault:"30s"`
	ReadyInterval time.Duration `env:"PROVISION_READY_INTERVAL" envDefault:"2s"`

	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.AWS.Region == "" {
		return fmt.Errorf("AWS region is required")
	}

	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}

	if c.Provision.RecordTTL <= 0 {
		return fmt.Errorf("record TTL must be positive")
	}
	if c.Provision.ReadyInterval <= 0 || c.Provision.ReadyTimeout < c.Provision.ReadyInterval {
		return fmt.Errorf("readiness poll interval must be positive and not exceed the timeout")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
