// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	GANTRY_HOST="0.0.0.0"
//	GANTRY_PORT="8080"
//	GANTRY_HEALTH_PORT="9090"
//	GANTRY_READ_TIMEOUT="15s"
//	GANTRY_SHUTDOWN_TIMEOUT="30s"
//
// Database settings:
//
//	GANTRY_DB_DRIVER="postgres"  # sqlite3, postgres
//	GANTRY_DB_DSN="postgres://localhost/gantry?sslmode=disable"
//	GANTRY_DB_REPLICA_DSNS="postgres://replica1/gantry,postgres://replica2/gantry"
//	GANTRY_DB_MAX_CONNS="20"
//
// Cache settings:
//
//	GANTRY_CACHE_ENABLED="true"
//	GANTRY_ITEM_CACHE_SIZE="1024"
//	GANTRY_REDIS_URL="redis://localhost:6379"  # enables the collection cache
//	GANTRY_COLLECTION_CACHE_TTL="30s"
//
// API settings:
//
//	GANTRY_OVERLAY_FILE="/etc/gantry/overlay.yaml"
//	GANTRY_TOKENS_FILE="/etc/gantry/tokens.yaml"
//	GANTRY_RECREATE_SCHEMA="true"
//	GANTRY_SEED="false"
//	GANTRY_RESET_SCHEDULE="0 3 * * *"  # reseed the demo data nightly
//	GANTRY_CORS_ORIGINS="https://app.example.com"
//	GANTRY_RATE_LIMIT_REQUESTS="100"  # per window, 0 disables
//	GANTRY_RATE_LIMIT_WINDOW="1m"
//	GANTRY_AUDIT_DIR="/var/log/gantry"  # audit.log of writes and denials
//	GANTRY_AUDIT_DATABASE="true"        # audit_events table
//
// Observability settings:
//
//	GANTRY_LOG_LEVEL="info"  # debug, info, warn, error
//	GANTRY_METRICS_ENABLED="true"
//	GANTRY_OTEL_ENABLED="true"
//	GANTRY_OTEL_ENDPOINT="otel-collector:4317"
//	GANTRY_OTEL_SAMPLE_RATIO="0.1"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Database: %s\n", cfg.Storage.Driver)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
