package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Catalog source kinds accepted by CATALOG_SOURCE.
const (
	CatalogFile     = "file"
	CatalogHTTP     = "http"
	CatalogPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	Catalog CatalogConfig
	Cart    CartConfig
	Limits  LimitConfig
	Obs     ObsConfig
	Worker  WorkerConfig

	IdempotencyTTL time.Duration
}

// CatalogConfig selects where reference data comes from.
type CatalogConfig struct {
	Source      string
	File        string
	URL         string
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
}

// CartConfig tunes cart sessions and pricing policy.
type CartConfig struct {
	TTL                    time.Duration
	TimeZone               string
	DefaultDiscountPercent int64
	LockTTL                time.Duration
	LockRetry              time.Duration
	LockWait               time.Duration
}

// LimitConfig configures the write rate limiter.
type LimitConfig struct {
	Enabled bool
	Rate    string
}

// ObsConfig controls logging, metrics and tracing.
type ObsConfig struct {
	LogFormat      string
	LogLevel       string
	MetricsEnabled bool
	TracingEnabled bool
	OTLPEndpoint   string
	TraceExporter  string
	TraceSampling  float64
	Buckets        string
}

// WorkerConfig configures the catalog refresh worker.
type WorkerConfig struct {
	Concurrency     int
	RefreshInterval time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience:        strings.TrimSpace(k.String("JWT_AUDIENCE")),
		Catalog: CatalogConfig{
			Source:      strings.ToLower(valueOrDefault(k.String("CATALOG_SOURCE"), CatalogFile)),
			File:        valueOrDefault(k.String("CATALOG_FILE"), "catalog.json"),
			URL:         strings.TrimSpace(k.String("CATALOG_URL")),
			HTTPTimeout: parseDuration(k.String("CATALOG_HTTP_TIMEOUT"), "5s"),
			CacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "10m"),
		},
		Cart: CartConfig{
			TTL:                    parseDuration(k.String("CART_TTL"), "720h"),
			TimeZone:               valueOrDefault(k.String("CART_TIMEZONE"), "America/New_York"),
			DefaultDiscountPercent: parseInt(k.String("DEFAULT_DISCOUNT_PERCENT"), 20),
			LockTTL:                parseDuration(k.String("CART_LOCK_TTL"), "5s"),
			LockRetry:              parseDuration(k.String("CART_LOCK_RETRY"), "25ms"),
			LockWait:               parseDuration(k.String("CART_LOCK_WAIT"), "2s"),
		},
		Limits: LimitConfig{
			Enabled: parseBoolDefault(k.String("RATE_LIMIT_ENABLED"), true),
			Rate:    valueOrDefault(k.String("RATE_LIMIT_CART_WRITES"), "120-M"),
		},
		Obs: ObsConfig{
			LogFormat:      valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:       valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled: parseBoolDefault(k.String("OBS_METRICS_ENABLED"), true),
			TracingEnabled: parseBool(k.String("OBS_TRACING_ENABLED")),
			OTLPEndpoint:   strings.TrimSpace(k.String("OTEL_EXPORTER_OTLP_ENDPOINT")),
			TraceExporter:  valueOrDefault(k.String("OBS_TRACE_EXPORTER"), "otlp"),
			TraceSampling:  parseFloat(k.String("OBS_TRACE_SAMPLING"), 1),
			Buckets:        k.String("OBS_HTTP_BUCKETS_MS"),
		},
		Worker: WorkerConfig{
			Concurrency:     int(parseInt(k.String("WORKER_CONCURRENCY"), 4)),
			RefreshInterval: parseDuration(k.String("CATALOG_REFRESH_INTERVAL"), "5m"),
		},
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Catalog.Source {
	case CatalogFile:
		if strings.TrimSpace(c.Catalog.File) == "" {
			return errors.New("CATALOG_FILE is required for file catalogs")
		}
	case CatalogHTTP:
		if c.Catalog.URL == "" {
			return errors.New("CATALOG_URL is required for http catalogs")
		}
	case CatalogPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for postgres catalogs")
		}
	default:
		return fmt.Errorf("unsupported CATALOG_SOURCE %q", c.Catalog.Source)
	}
	if _, err := time.LoadLocation(c.Cart.TimeZone); err != nil {
		return fmt.Errorf("CART_TIMEZONE: %w", err)
	}
	if c.Cart.DefaultDiscountPercent < 0 || c.Cart.DefaultDiscountPercent > 100 {
		return errors.New("DEFAULT_DISCOUNT_PERCENT must be between 0 and 100")
	}
	return nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	d, err := time.ParseDuration(valueOrDefault(value, fallback))
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
// An empty value unsets the variable for the duration of the load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key, value := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, value); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []error
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %w", errors.Join(errs...))
	}
	return nil
}
