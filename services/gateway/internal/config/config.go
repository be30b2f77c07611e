package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgconfig "github.com/deepak1410/task-management/pkg/config"
)

// Config holds all configuration for the API gateway service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"GATEWAY_HTTP_PORT" envDefault:"8080"`

	// JWT verification. The secret must match the identity service's
	// signing secret.
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"your-secret-key-change-in-production"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Fallback lifetime for revocation entries when a token's own expiry
	// cannot be read.
	RevocationFallbackTTL time.Duration `env:"REVOCATION_FALLBACK_TTL" envDefault:"15m"`

	// Backend service URLs.
	IdentityServiceURL string `env:"IDENTITY_SERVICE_URL" envDefault:"http://localhost:8081"`
	TaskServiceURL     string `env:"TASK_SERVICE_URL" envDefault:"http://localhost:8082"`

	// Directory lookup bound during edge authentication.
	DirectoryTimeout time.Duration `env:"DIRECTORY_TIMEOUT" envDefault:"5s"`

	// Redis (revocation cache).
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Whitelisted path patterns that bypass edge authentication. A
	// trailing /** matches any suffix.
	WhitelistPatterns []string `env:"AUTH_WHITELIST" envSeparator:"," envDefault:"/api/auth/**,/health/**,/metrics"`

	// Rate limiting. Defaults apply to every route; per-route overrides
	// use the form "route:replenish:burst" (e.g. "tasks:20:40").
	RateLimitReplenish int      `env:"RATE_LIMIT_REPLENISH" envDefault:"5"`
	RateLimitBurst     int      `env:"RATE_LIMIT_BURST" envDefault:"10"`
	RateLimitRoutes    []string `env:"RATE_LIMIT_ROUTES" envSeparator:"," envDefault:""`

	// CORS.
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	CORSMaxAge         int      `env:"CORS_MAX_AGE" envDefault:"3600"`

	// Observability endpoint protection.
	MetricsAllowedCIDRs []string `env:"METRICS_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8,10.0.0.0/8"`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envSeparator:"," envDefault:"127.0.0.0/8"`

	// OpenTelemetry.
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// RouteRate holds the token bucket parameters for one route.
type RouteRate struct {
	ReplenishRate int
	Burst         int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
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
	if c.RateLimitReplenish <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit replenish and burst must be positive")
	}
	if _, err := c.RouteRates(); err != nil {
		return err
	}
	return nil
}

// RouteRates parses the per-route rate limit overrides.
func (c *Config) RouteRates() (map[string]RouteRate, error) {
	rates := make(map[string]RouteRate, len(c.RateLimitRoutes))
	for _, entry := range c.RateLimitRoutes {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid rate limit route %q, want route:replenish:burst", entry)
		}
		replenish, err := strconv.Atoi(parts[1])
		if err != nil || replenish <= 0 {
			return nil, fmt.Errorf("invalid replenish rate in %q", entry)
		}
		burst, err := strconv.Atoi(parts[2])
		if err != nil || burst <= 0 {
			return nil, fmt.Errorf("invalid burst in %q", entry)
		}
		rates[parts[0]] = RouteRate{ReplenishRate: replenish, Burst: burst}
	}
	return rates, nil
}
