package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
)

// collectionKeyPrefix prefixes every cached collection page in redis
const collectionKeyPrefix = "gantry:list:"

// CachedStore decorates a Store with an in-process item cache and an
// optional redis cache of collection pages. Any write clears both: a
// change to one item can alter pages of other resources through relation
// filters.
type CachedStore struct {
	Store
	items   *lru.LRU[string, metadata.Item]
	redis   *RedisClient
	metrics *observability.Metrics
	logger  *observability.Logger
}

// CacheOption configures a CachedStore
type CacheOption func(*CachedStore)

// WithCacheMetrics records hits and misses
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *CachedStore) { c.metrics = m }
}

// WithCacheLogger sets the logger
func WithCacheLogger(l *observability.Logger) CacheOption {
	return func(c *CachedStore) { c.logger = l }
}

// NewCachedStore wraps inner. redis may be nil to cache items only.
func NewCachedStore(inner Store, config Config, redis *RedisClient, opts ...CacheOption) *CachedStore {
	size := config.ItemCacheSize
	if size <= 0 {
		size = DefaultConfig().ItemCacheSize
	}
	c := &CachedStore{
		Store: inner,
		items: lru.NewLRU[string, metadata.Item](size, nil, config.CacheTTL["item"]),
		redis: redis,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return c
}

type collectionEntry struct {
	IDs   []string `json:"ids"`
	Total int64    `json:"total"`
}

func itemKey(res *metadata.Resource, id any) string {
	return res.Name + ":" + res.FormatIdentifier(id)
}

// collectionKey identifies a page by resource and rendered query
func collectionKey(res *metadata.Resource, b *query.Builder) (string, error) {
	var idColumns []string
	for _, f := range res.Root().IdentifierFields() {
		idColumns = append(idColumns, f.Column)
	}
	args, err := json.Marshal(b.Args())
	if err != nil {
		return "", err
	}
	sum := sha256.New()
	sum.Write([]byte(b.SelectSQL(idColumns...)))
	sum.Write([]byte{0})
	sum.Write(args)
	return collectionKeyPrefix + res.Name + ":" + hex.EncodeToString(sum.Sum(nil)), nil
}

// Get implements Store
func (c *CachedStore) Get(ctx context.Context, res *metadata.Resource, id any) (metadata.Item, error) {
	key := itemKey(res, id)
	if item, ok := c.items.Get(key); ok {
		c.recordHit("memory", "item")
		return item.Clone(), nil
	}
	c.recordMiss("memory", "item")

	item, err := c.Store.Get(ctx, res, id)
	if err != nil {
		return nil, err
	}
	c.items.Add(key, item.Clone())
	c.recordEntries()
	return item, nil
}

// List implements Store
func (c *CachedStore) List(ctx context.Context, res *metadata.Resource, b *query.Builder) ([]metadata.Item, int64, error) {
	if c.redis == nil {
		return c.Store.List(ctx, res, b)
	}
	key, err := collectionKey(res, b)
	if err != nil {
		return c.Store.List(ctx, res, b)
	}

	if items, total, ok := c.cachedPage(ctx, res, key); ok {
		c.recordHit("redis", "collection")
		return items, total, nil
	}
	c.recordMiss("redis", "collection")

	items, total, err := c.Store.List(ctx, res, b)
	if err != nil {
		return nil, 0, err
	}

	entry := collectionEntry{IDs: make([]string, len(items)), Total: total}
	for i, item := range items {
		id := res.Root().IdentifierValue(item)
		entry.IDs[i] = res.FormatIdentifier(id)
		c.items.Add(itemKey(res, id), item.Clone())
	}
	c.recordEntries()
	data, err := json.Marshal(entry)
	if err == nil {
		if err := c.redis.Set(ctx, key, data); err != nil {
			c.logger.WithError(err).Warn("failed to cache collection")
		}
	}
	return items, total, nil
}

// cachedPage resolves a cached page through the item cache. Pages naming
// items that no longer exist are dropped.
func (c *CachedStore) cachedPage(ctx context.Context, res *metadata.Resource, key string) ([]metadata.Item, int64, bool) {
	data, err := c.redis.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).Warn("collection cache unavailable")
		return nil, 0, false
	}
	if data == nil {
		return nil, 0, false
	}

	var entry collectionEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.redis.Del(ctx, key)
		return nil, 0, false
	}

	items := make([]metadata.Item, 0, len(entry.IDs))
	for _, raw := range entry.IDs {
		id, err := res.ParseIdentifier(raw)
		if err != nil {
			c.redis.Del(ctx, key)
			return nil, 0, false
		}
		item, err := c.Get(ctx, res, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				c.logger.WithError(err).Warn("failed to load cached collection item")
			}
			c.redis.Del(ctx, key)
			return nil, 0, false
		}
		items = append(items, item)
	}
	return items, entry.Total, true
}

// Create implements Store
func (c *CachedStore) Create(ctx context.Context, res *metadata.Resource, item metadata.Item) (metadata.Item, error) {
	created, err := c.Store.Create(ctx, res, item)
	c.invalidate(ctx)
	return created, err
}

// Update implements Store
func (c *CachedStore) Update(ctx context.Context, res *metadata.Resource, id any, item metadata.Item) (metadata.Item, error) {
	updated, err := c.Store.Update(ctx, res, id, item)
	c.invalidate(ctx)
	return updated, err
}

// Delete implements Store
func (c *CachedStore) Delete(ctx context.Context, res *metadata.Resource, id any) error {
	err := c.Store.Delete(ctx, res, id)
	c.invalidate(ctx)
	return err
}

// RecreateSchema implements Store
func (c *CachedStore) RecreateSchema(ctx context.Context, resources []*metadata.Resource) error {
	err := c.Store.RecreateSchema(ctx, resources)
	c.invalidate(ctx)
	return err
}

// Invalidate clears both caches
func (c *CachedStore) Invalidate(ctx context.Context) error {
	c.items.Purge()
	c.recordEntries()
	if c.metrics != nil {
		c.metrics.CacheEvictionsTotal.WithLabelValues("memory", "invalidate").Inc()
	}
	if c.redis == nil {
		return nil
	}
	_, err := c.redis.DeleteMatching(ctx, collectionKeyPrefix+"*")
	return err
}

func (c *CachedStore) invalidate(ctx context.Context) {
	if err := c.Invalidate(ctx); err != nil {
		c.logger.WithError(err).Warn("failed to invalidate collection cache")
	}
}

// Close closes the wrapped store and the redis client
func (c *CachedStore) Close() error {
	err := c.Store.Close()
	if c.redis != nil {
		if rerr := c.redis.Close(); rerr != nil && err == nil {
			err = fmt.Errorf("failed to close redis: %w", rerr)
		}
	}
	return err
}

func (c *CachedStore) recordHit(cacheType, keyType string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(cacheType, keyType).Inc()
	}
}

func (c *CachedStore) recordMiss(cacheType, keyType string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(cacheType, keyType).Inc()
	}
}

func (c *CachedStore) recordEntries() {
	if c.metrics != nil {
		c.metrics.CacheEntries.WithLabelValues("memory").Set(float64(c.items.Len()))
	}
}
