// Package storage persists resource items.
//
// # Overview
//
// Store is the persistence contract used by the API layer. Items are
// metadata.Item maps keyed by property name; relations hold related
// identifiers and collections hold lists of identifiers.
//
// The sqlstore sub-package implements Store on PostgreSQL (lib/pq) and
// SQLite (mattn/go-sqlite3). It generates the schema from resource metadata:
// one table per hierarchy root, a discriminator column for single table
// inheritance and a join table per owning many-to-many relation.
//
// # Caching
//
// CachedStore wraps any Store:
//
//	inner := sqlstore.New(conn, registry)
//	redis, err := storage.NewRedisClient(config)
//	store := storage.NewCachedStore(inner, config, redis)
//
// Items are cached in process with an expirable LRU. Collection pages are
// cached in Redis as lists of identifiers keyed by the rendered query, so a
// cached page is resolved through the item cache. Any write clears both.
//
// # Fixtures
//
// Manager persists tagged Go entities, the way fixture loaders do:
//
//	m := storage.NewManager(store, registry)
//	m.Persist(&relatedDummy, &dummy)
//	if err := m.Flush(ctx); err != nil {
//		return err
//	}
//
// Flush writes generated identifiers back into the entities.
package storage
