package apitest

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/storage"
)

func newCachedKernel(t *testing.T) (*Kernel, *miniredis.Miniredis, *observability.Metrics) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	config := storage.DefaultConfig()
	config.RedisURL = "redis://" + mr.Addr()
	redis, err := storage.NewRedisClient(config)
	require.NoError(t, err)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	k := New(t, WithStoreWrapper(func(inner storage.Store) storage.Store {
		return storage.NewCachedStore(inner, config, redis, storage.WithCacheMetrics(metrics))
	}))
	return k, mr, metrics
}

func TestCachedCollections(t *testing.T) {
	k, mr, metrics := newCachedKernel(t)
	seedDummies(t, k, 5)

	first := k.Get("/dummies?order[name]=desc")
	require.Equal(t, 200, first.Status)
	assert.Len(t, mr.Keys(), 1)

	second := k.Get("/dummies?order[name]=desc")
	require.Equal(t, 200, second.Status)
	assert.JSONEq(t, string(first.Raw), string(second.Raw))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheHitsTotal.WithLabelValues("redis", "collection")))
	assert.Equal(t, float64(5), testutil.ToFloat64(metrics.CacheEntries.WithLabelValues("memory")))

	t.Run("pages are keyed by query", func(t *testing.T) {
		k.Get("/dummies?page=2")
		assert.Len(t, mr.Keys(), 2)
	})

	t.Run("writes invalidate pages", func(t *testing.T) {
		resp := k.Request(http.MethodPost, "/dummies", map[string]any{"name": "Dummy #9"}, "")
		require.Equal(t, 201, resp.Status)
		assert.Empty(t, mr.Keys())

		resp = k.Get("/dummies?order[name]=desc")
		assert.Equal(t, 6, resp.Total())
		assert.Equal(t, "Dummy #9", resp.Values("name")[0])
	})

	t.Run("updates are visible on items", func(t *testing.T) {
		iri := k.Get("/dummies").IDs()[0]
		k.Get(iri)
		resp := k.Request(http.MethodPut, iri, map[string]any{"name": "changed"}, "")
		require.Equal(t, 200, resp.Status)

		resp = k.Get(iri)
		assert.Equal(t, "changed", resp.Body["name"])
	})

	t.Run("filters are not served from other pages", func(t *testing.T) {
		resp := k.Get("/dummies?name=changed")
		assert.Equal(t, 1, resp.Total())
		resp = k.Get("/dummies?name=%234")
		assert.Equal(t, []any{"Dummy #4"}, resp.Values("name"))
	})
}
