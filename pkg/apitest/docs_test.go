package apitest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntrypoint(t *testing.T) {
	k := New(t)

	resp := k.Get("/")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "Entrypoint", resp.Body["@type"])
	assert.Equal(t, "/", resp.Body["@id"])
	assert.Equal(t, "/dummies", resp.Body["dummy"])
	assert.Equal(t, "/related_dummies", resp.Body["relatedDummy"])
	assert.Equal(t, "/secured_dummies", resp.Body["securedDummy"])
	assert.Equal(t, "/cats", resp.Body["cat"])
}

func TestJSONLDContext(t *testing.T) {
	k := New(t)

	resp := k.Get("/contexts/Dummy")
	require.Equal(t, 200, resp.Status)
	ctx, ok := resp.Body["@context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/docs.jsonld#", ctx["@vocab"])
	assert.Equal(t, "http://www.w3.org/ns/hydra/core#", ctx["hydra"])
	assert.Equal(t, map[string]any{"@id": "Dummy/name"}, ctx["name"])
	assert.Equal(t, map[string]any{"@id": "Dummy/relatedDummy", "@type": "@id"}, ctx["relatedDummy"])

	resp = k.Get("/contexts/Nope")
	assert.Equal(t, 404, resp.Status)
}

func TestUnknownRoutes(t *testing.T) {
	k := New(t)

	resp := k.Get("/nowhere")
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "hydra:Error", resp.Body["@type"])
	assert.Equal(t, `No route found for "GET /nowhere"`, resp.Description())

	resp = k.Request(http.MethodPost, "/dummies/1", map[string]any{}, "")
	assert.Equal(t, 405, resp.Status)
	assert.Equal(t, `No route found for "POST /dummies/1": Method Not Allowed`, resp.Description())
}

func TestOpenAPIDocument(t *testing.T) {
	k := New(t)

	resp := k.Get("/docs.json")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "3.0.3", resp.Body["openapi"])

	paths, ok := resp.Body["paths"].(map[string]any)
	require.True(t, ok)
	for _, path := range []string{"/dummies", "/dummies/{id}", "/chicken_coops/{id}/chickens", "/composite_items/{id}"} {
		assert.Contains(t, paths, path)
	}

	dummies := paths["/dummies"].(map[string]any)["get"].(map[string]any)
	var names []string
	for _, p := range dummies["parameters"].([]any) {
		names = append(names, p.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "page")
	assert.Contains(t, names, "name")
	assert.Contains(t, names, "order[id]")

	schemas := resp.Body["components"].(map[string]any)["schemas"].(map[string]any)
	assert.Contains(t, schemas, "Dummy")
}
