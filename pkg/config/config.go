package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/storage"
	"github.com/platinummonkey/gantry/pkg/storage/sqlstore"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// API configuration
	API APIConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// APIConfig holds settings of the served resources
type APIConfig struct {
	// OverlayFile is a YAML metadata overlay applied to the fixture registry
	OverlayFile string
	// TokensFile is a YAML table of bearer tokens
	TokensFile string
	// RecreateSchema drops and creates every table on startup
	RecreateSchema bool
	// Seed loads the demo fixtures after the schema is created
	Seed bool
	// ResetSchedule is a cron spec for dropping and reseeding the demo
	// data, empty to never reset
	ResetSchedule string
	CORSOrigins   []string
	// AuditDir receives audit.log when set
	AuditDir string
	// AuditDatabase stores audit events in the API database
	AuditDatabase bool
	MaxBodyBytes int64

	// Rate limits, disabled when RateLimitRequests is zero
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitBurst    int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		API:           loadAPIConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("GANTRY_HOST", "0.0.0.0"),
		Port:            getEnv("GANTRY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("GANTRY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("GANTRY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("GANTRY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("GANTRY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("GANTRY_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// Database
	if driver := getEnv("GANTRY_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dsn := getEnv("GANTRY_DB_DSN", ""); dsn != "" {
		cfg.DSN = dsn
	}
	if replicas := getEnv("GANTRY_DB_REPLICA_DSNS", ""); replicas != "" {
		cfg.ReplicaDSNs = sqlstore.ParseReplicaDSNs(replicas)
	}
	if maxConns := getEnvInt("GANTRY_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("GANTRY_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("GANTRY_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	// Redis config
	if redisURL := getEnv("GANTRY_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("GANTRY_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("GANTRY_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("GANTRY_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("GANTRY_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	cfg.CacheEnabled = getEnvBool("GANTRY_CACHE_ENABLED", cfg.CacheEnabled)
	if size := getEnvInt("GANTRY_ITEM_CACHE_SIZE", 0); size > 0 {
		cfg.ItemCacheSize = size
	}
	if ttl := getEnvDuration("GANTRY_ITEM_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["item"] = ttl
	}
	if ttl := getEnvDuration("GANTRY_COLLECTION_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL["collection"] = ttl
	}

	return cfg
}

// loadAPIConfig loads API configuration from environment
func loadAPIConfig() APIConfig {
	cfg := APIConfig{
		OverlayFile:       getEnv("GANTRY_OVERLAY_FILE", ""),
		TokensFile:        getEnv("GANTRY_TOKENS_FILE", ""),
		RecreateSchema:    getEnvBool("GANTRY_RECREATE_SCHEMA", true),
		Seed:              getEnvBool("GANTRY_SEED", false),
		ResetSchedule:     getEnv("GANTRY_RESET_SCHEDULE", ""),
		AuditDir:          getEnv("GANTRY_AUDIT_DIR", ""),
		AuditDatabase:     getEnvBool("GANTRY_AUDIT_DATABASE", false),
		MaxBodyBytes:      getEnvInt64("GANTRY_MAX_BODY_BYTES", 1<<20),
		RateLimitRequests: getEnvInt("GANTRY_RATE_LIMIT_REQUESTS", 0),
		RateLimitWindow:   getEnvDuration("GANTRY_RATE_LIMIT_WINDOW", time.Minute),
		RateLimitBurst:    getEnvInt("GANTRY_RATE_LIMIT_BURST", 10),
	}
	if origins := getEnv("GANTRY_CORS_ORIGINS", ""); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("GANTRY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("GANTRY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("GANTRY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("GANTRY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("GANTRY_OTEL_SERVICE_NAME", "gantry"),
		OTelServiceVersion: getEnv("GANTRY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("GANTRY_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("GANTRY_OTEL_SAMPLE_RATIO", 1.0),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case "sqlite3", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("database DSN is required for %s", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Storage.Driver)
	}
	if c.Storage.MinConns > c.Storage.MaxConns {
		return fmt.Errorf("min connections (%d) exceed max connections (%d)", c.Storage.MinConns, c.Storage.MaxConns)
	}

	// Validate API config
	if c.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	if c.API.ResetSchedule != "" {
		if _, err := cron.ParseStandard(c.API.ResetSchedule); err != nil {
			return fmt.Errorf("invalid reset schedule: %w", err)
		}
	}
	if c.API.RateLimitRequests < 0 {
		return fmt.Errorf("rate limit requests must not be negative")
	}
	if c.API.RateLimitRequests > 0 && c.API.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1")
		}
	}

	return nil
}

// parseLogLevel parses a log level string, defaulting to info
func parseLogLevel(level string) observability.LogLevel {
	l, _ := observability.ParseLogLevel(level)
	return l
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
