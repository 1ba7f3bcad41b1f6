package apitest

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/fixtures"
)

func TestCRUD_Dummy(t *testing.T) {
	k := New(t)
	related, err := fixtures.SeedRelatedDummies(context.Background(), k.Manager, "rel")
	require.NoError(t, err)
	relatedIRI := fmt.Sprintf("/related_dummies/%d", related[0].RelatedDummy.ID)

	var iri string
	t.Run("create", func(t *testing.T) {
		resp := k.Request(http.MethodPost, "/dummies", map[string]any{
			"name":           "My Dummy",
			"alias":          "dumdum",
			"dummyDate":      "2015-03-01T10:00:00+00:00",
			"dummyFloat":     1.5,
			"dummyPrice":     "12.99",
			"relatedDummy":   relatedIRI,
			"relatedDummies": []string{relatedIRI},
			"embeddedDummy":  map[string]any{"dummyName": "inside", "dummyBoolean": true},
		}, "")
		require.Equal(t, 201, resp.Status, string(resp.Raw))

		iri = resp.Body["@id"].(string)
		assert.Regexp(t, `^/dummies/\d+$`, iri)
		assert.Equal(t, iri, resp.Header.Get("Location"))
		assert.Equal(t, iri, resp.Header.Get("Content-Location"))
		assert.Equal(t, "application/ld+json; charset=utf-8", resp.Header.Get("Content-Type"))

		assert.Equal(t, "/contexts/Dummy", resp.Body["@context"])
		assert.Equal(t, "Dummy", resp.Body["@type"])
		assert.Equal(t, "My Dummy", resp.Body["name"])
		assert.Equal(t, "2015-03-01T10:00:00+00:00", resp.Body["dummyDate"])
		assert.Equal(t, 1.5, resp.Body["dummyFloat"])
		assert.Equal(t, "12.99", resp.Body["dummyPrice"])
		assert.Equal(t, relatedIRI, resp.Body["relatedDummy"])
		assert.Equal(t, []any{relatedIRI}, resp.Body["relatedDummies"])
		assert.Nil(t, resp.Body["description"])
		assert.Equal(t, map[string]any{
			"dummyName":    "inside",
			"dummyBoolean": true,
			"dummyDate":    nil,
			"dummyFloat":   nil,
			"dummyPrice":   nil,
		}, resp.Body["embeddedDummy"])
	})

	t.Run("read", func(t *testing.T) {
		resp := k.Get(iri)
		require.Equal(t, 200, resp.Status)
		assert.Equal(t, iri, resp.Header.Get("Content-Location"))
		assert.Equal(t, "dumdum", resp.Body["alias"])
	})

	t.Run("replace merges present properties", func(t *testing.T) {
		resp := k.Request(http.MethodPut, iri, map[string]any{
			"name":          "Renamed",
			"embeddedDummy": map[string]any{"dummyFloat": 2.5},
		}, "")
		require.Equal(t, 200, resp.Status, string(resp.Raw))
		assert.Equal(t, "Renamed", resp.Body["name"])
		assert.Equal(t, "dumdum", resp.Body["alias"])

		embedded := resp.Body["embeddedDummy"].(map[string]any)
		assert.Equal(t, "inside", embedded["dummyName"])
		assert.Equal(t, 2.5, embedded["dummyFloat"])
	})

	t.Run("patch clears values set to null", func(t *testing.T) {
		resp := k.Request(http.MethodPatch, iri, map[string]any{"alias": nil, "relatedDummies": []string{}}, "")
		require.Equal(t, 200, resp.Status, string(resp.Raw))
		assert.Nil(t, resp.Body["alias"])
		assert.Equal(t, []any{}, resp.Body["relatedDummies"])
		assert.Equal(t, relatedIRI, resp.Body["relatedDummy"])
	})

	t.Run("identifiers and unknown properties are ignored", func(t *testing.T) {
		resp := k.Request(http.MethodPut, iri, map[string]any{"id": 999, "unknown": "x"}, "")
		require.Equal(t, 200, resp.Status)
		assert.Equal(t, iri, resp.Body["@id"])
		assert.NotContains(t, resp.Body, "unknown")
	})

	t.Run("update keeps validation", func(t *testing.T) {
		resp := k.Request(http.MethodPut, iri, map[string]any{"name": ""}, "")
		assert.Equal(t, 422, resp.Status)
	})

	t.Run("delete", func(t *testing.T) {
		resp := k.Request(http.MethodDelete, iri, nil, "")
		assert.Equal(t, 204, resp.Status)

		resp = k.Get(iri)
		assert.Equal(t, 404, resp.Status)

		resp = k.Request(http.MethodDelete, iri, nil, "")
		assert.Equal(t, 404, resp.Status)
	})
}

func TestCRUD_NotFound(t *testing.T) {
	k := New(t)

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/dummies/42"},
		{http.MethodGet, "/dummies/not-a-number"},
		{http.MethodPut, "/dummies/42"},
		{http.MethodPatch, "/dummies/42"},
		{http.MethodDelete, "/dummies/42"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			resp := k.Request(tt.method, tt.target, map[string]any{"name": "x"}, "")
			assert.Equal(t, 404, resp.Status)
			assert.Equal(t, "hydra:Error", resp.Body["@type"])
			assert.Equal(t, "Not Found", resp.Description())
		})
	}
}

func TestCRUD_InvalidRelation(t *testing.T) {
	k := New(t)

	tests := []struct {
		name    string
		value   any
		message string
	}{
		{"unknown route", "/nowhere/1", `Invalid IRI "/nowhere/1".`},
		{"wrong resource", "/third_levels/1", `Invalid IRI "/third_levels/1".`},
		{"not an IRI", 12, `The type of the "relatedDummy" attribute must be "IRI", "number" given.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := k.Request(http.MethodPost, "/dummies", map[string]any{"name": "x", "relatedDummy": tt.value}, "")
			assert.Equal(t, 400, resp.Status)
			assert.Equal(t, tt.message, resp.Description())
		})
	}
}

func TestCRUD_CollectionDocument(t *testing.T) {
	k := New(t)
	seedDummies(t, k, 1)

	resp := k.Get("/dummies")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "/contexts/Dummy", resp.Body["@context"])
	assert.Equal(t, "/dummies", resp.Body["@id"])
	assert.Equal(t, "hydra:Collection", resp.Body["@type"])
	assert.Equal(t, 1, resp.Total())

	member := resp.Members()[0]
	assert.Equal(t, "Dummy", member["@type"])
	assert.NotContains(t, member, "@context")
	assert.Equal(t, "Dummy #1", member["name"])
	assert.Equal(t, "2015-04-01T00:00:00+00:00", member["dummyDate"])
	assert.Equal(t, "10", member["dummyPrice"])
}
