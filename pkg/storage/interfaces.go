package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/query"
)

var (
	// ErrNotFound is returned when no item matches an identifier
	ErrNotFound = errors.New("item not found")
	// ErrInvalidItem is returned for items that cannot be stored as given
	ErrInvalidItem = errors.New("invalid item")
)

// Store persists resource items
type Store interface {
	// Dialect is the SQL dialect queries must be built for
	Dialect() query.Dialect

	// RecreateSchema drops and creates the tables of the given resources
	RecreateSchema(ctx context.Context, resources []*metadata.Resource) error

	// Create stores a new item and returns it as stored, identifier included
	Create(ctx context.Context, res *metadata.Resource, item metadata.Item) (metadata.Item, error)
	Get(ctx context.Context, res *metadata.Resource, id any) (metadata.Item, error)
	// Update writes the properties present in item
	Update(ctx context.Context, res *metadata.Resource, id any, item metadata.Item) (metadata.Item, error)
	Delete(ctx context.Context, res *metadata.Resource, id any) error
	Exists(ctx context.Context, res *metadata.Resource, id any) (bool, error)

	// List runs a filtered query and returns one page of items and the
	// total number of matching items
	List(ctx context.Context, res *metadata.Resource, b *query.Builder) ([]metadata.Item, int64, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Config for storage backend
type Config struct {
	Driver string // "sqlite3" or "postgres"

	// DSN of the primary database
	DSN         string
	ReplicaDSNs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration

	// Redis config, the collection cache is disabled without a URL
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Cache config
	CacheEnabled  bool
	CacheTTL      map[string]time.Duration
	ItemCacheSize int
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite3",
		DSN:             "file:gantry?mode=memory&cache=shared&_cslike=1",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
		CacheEnabled:    false,
		CacheTTL: map[string]time.Duration{
			"item":       1 * time.Minute,
			"collection": 30 * time.Second,
		},
		ItemCacheSize: 1024,
	}
}
