package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/meridianshop/reviews-service/pkg/config"
	"github.com/meridianshop/reviews-service/pkg/database"
	"github.com/meridianshop/reviews-service/pkg/middleware"
)

// Config holds all configuration for the reviews service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort        int           `env:"REVIEWS_HTTP_PORT" envDefault:"8012"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"shop"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"shop_secret"`
	PostgresDB   string `env:"REVIEWS_DB_NAME" envDefault:"reviews_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Kafka
	KafkaBrokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaConsumerGroup string   `env:"REVIEWS_CONSUMER_GROUP" envDefault:"reviews-service"`

	// Redis (consumer idempotency; optional, in-memory fallback when unset)
	RedisHost      string        `env:"REDIS_HOST"`
	RedisPort      int           `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// JWT
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`

	// Tracing
	TracingEnabled    bool    `env:"TRACING_ENABLED" envDefault:"false"`
	TracingEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	TracingSampleRate float64 `env:"TRACING_SAMPLE_RATE" envDefault:"0.1"`

	// pprof (empty list disables the endpoints entirely)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32" envSeparator:","`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load reviews config: %w", err)
	}
	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}

	// In non-development environments, require an explicitly set, strong JWT secret.
	if cfg.Environment != "development" {
		if cfg.JWTSecret == "change-this-to-a-secure-secret" {
			return nil, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", cfg.Environment)
		}
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters long, got %d", len(cfg.JWTSecret))
		}
	}

	return cfg, nil
}

// Postgres returns the pool configuration for pkg/database.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPass,
		DBName:   c.PostgresDB,
		SSLMode:  c.PostgresSSL,
	}
}

// Redis returns the Redis configuration for pkg/database.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

// CORS returns the CORS middleware configuration. Wildcard origins are only
// honored in development; production deployments must list origins explicitly.
func (c *Config) CORS() middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = c.CORSAllowedOrigins
	cors.Environment = c.Environment
	return cors
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
