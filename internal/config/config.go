package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const minSessionSecretLen = 32

// Config holds all configuration for the application
type Config struct {
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	Port           string `envconfig:"PORT" default:"8080"`
	PrometheusPort string `envconfig:"PROMETHEUS_PORT" default:"9090"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`

	SessionSecret string `envconfig:"SESSION_SECRET"`
	SessionSecure bool   `envconfig:"SESSION_SECURE" default:"false"`

	AuditLogPath string `envconfig:"AUDIT_LOG_PATH"`

	CSVMaxBytes   int64         `envconfig:"CSV_MAX_BYTES" default:"2097152"`
	ImportRowCap  int           `envconfig:"IMPORT_ROW_CAP" default:"1000"`
	EnrichTimeout time.Duration `envconfig:"ENRICH_TIMEOUT" default:"10s"`
	EnrichWorkers int           `envconfig:"ENRICH_WORKERS" default:"4"`
	EnrichRate    float64       `envconfig:"ENRICH_RATE" default:"5"`

	JobStore      string        `envconfig:"JOB_STORE" default:"memory"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	JobTTL        time.Duration `envconfig:"JOB_TTL" default:"30m"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
}

// Load loads configuration from environment variables, reading a .env file
// first when one is present
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.DatabaseURL == "" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_URL environment variable is required"))
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite3" {
		result = multierror.Append(result, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite3, got %q", c.DatabaseDriver))
	}
	if len(c.SessionSecret) < minSessionSecretLen {
		result = multierror.Append(result, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLen))
	}
	if c.CSVMaxBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("CSV_MAX_BYTES must be positive"))
	}
	if c.ImportRowCap <= 0 {
		result = multierror.Append(result, fmt.Errorf("IMPORT_ROW_CAP must be positive"))
	}
	if c.EnrichTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("ENRICH_TIMEOUT must be positive"))
	}
	if c.EnrichWorkers <= 0 {
		result = multierror.Append(result, fmt.Errorf("ENRICH_WORKERS must be positive"))
	}
	if c.EnrichRate <= 0 {
		result = multierror.Append(result, fmt.Errorf("ENRICH_RATE must be positive"))
	}
	if c.JobStore != "memory" && c.JobStore != "redis" {
		result = multierror.Append(result, fmt.Errorf("JOB_STORE must be memory or redis, got %q", c.JobStore))
	}
	if c.JobTTL <= 0 {
		result = multierror.Append(result, fmt.Errorf("JOB_TTL must be positive"))
	}
	if c.RateLimitPerMinute <= 0 {
		result = multierror.Append(result, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	return result.ErrorOrNil()
}
