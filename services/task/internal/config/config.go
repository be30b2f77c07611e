// Package config loads the task service configuration from the environment.
package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/deepak1410/task-management/pkg/config"
	"github.com/deepak1410/task-management/pkg/database"
)

// Config holds all configuration for the task service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"TASK_HTTP_PORT" envDefault:"8082"`

	// JWT verification. Must match the secret the identity service signs
	// with, so directly presented bearers can be checked here.
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Identity service lookup for the direct-bearer admission path.
	IdentityServiceURL string        `env:"IDENTITY_SERVICE_URL" envDefault:"http://localhost:8081"`
	DirectoryTimeout   time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"5s"`

	// PostgreSQL.
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"taskmgmt"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"taskmgmt_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"taskmgmt"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Redis (revocation cache).
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// OpenTelemetry.
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load task config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Environment != "development" && c.JWTSecret == "your-secret-key-change-in-production" {
		return fmt.Errorf("JWT_SECRET must be changed from default value in %s environment", c.Environment)
	}
	if c.IdentityServiceURL == "" {
		return fmt.Errorf("IDENTITY_SERVICE_URL must not be empty")
	}
	return nil
}

// PostgresConfig builds the connection settings for pkg/database.
func (c *Config) PostgresConfig() *database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return &pg
}
