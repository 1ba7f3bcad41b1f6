package hydra

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/validation"
)

type hCoop struct {
	ID       int64       `json:"id" orm:"id;generated" groups:"coop:read"`
	Name     string      `json:"name" groups:"coop:read,chicken:read"`
	Chickens []*hChicken `json:"chickens" orm:"oneToMany=Chicken;mappedBy=chickenCoop" groups:"coop:read"`
}

type hChicken struct {
	ID          int64           `json:"id" orm:"id;generated"`
	Name        string          `json:"name" groups:"chicken:read,chicken:write"`
	Weight      decimal.Decimal `json:"weight" groups:"chicken:read,chicken:write"`
	HatchedAt   *time.Time      `json:"hatchedAt" orm:"type=date" groups:"chicken:read,chicken:write"`
	Eggs        int             `json:"eggs" groups:"chicken:read,chicken:write"`
	Free        bool            `json:"free" groups:"chicken:write"`
	Tag         hTag            `json:"tag" orm:"embedded" groups:"chicken:read,chicken:write"`
	ChickenCoop *hCoop          `json:"chickenCoop" orm:"manyToOne=ChickenCoop" groups:"chicken:read,chicken:write"`
}

type hTag struct {
	Color string `json:"color"`
}

type mapLoader map[string]metadata.Item

func (m mapLoader) Get(ctx context.Context, res *metadata.Resource, id any) (metadata.Item, error) {
	item, ok := m[res.Name+"/"+res.FormatIdentifier(id)]
	if !ok {
		return nil, errors.New("not found")
	}
	return item, nil
}

func newRegistry(t *testing.T) *metadata.Registry {
	t.Helper()
	reg := metadata.NewRegistry()
	reg.Register(
		metadata.MustParse("ChickenCoop", hCoop{}),
		metadata.MustParse("Chicken", hChicken{}),
	)
	require.NoError(t, reg.Resolve())
	return reg
}

// roundTrip encodes a document the way responses are written
func roundTrip(t *testing.T, doc Document) map[string]any {
	t.Helper()
	body, err := json.Marshal(doc)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func chickenItem() metadata.Item {
	return metadata.Item{
		"id":          int64(1),
		"name":        "Gertrude",
		"weight":      decimal.RequireFromString("2.50"),
		"hatchedAt":   time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC),
		"eggs":        int64(12),
		"free":        true,
		"tag":         metadata.Item{"color": "red"},
		"chickenCoop": int64(2),
	}
}

func TestNormalizer_Item(t *testing.T) {
	reg := newRegistry(t)
	n := NewNormalizer(reg, nil)

	doc, err := n.Item(context.Background(), reg.MustGet("Chicken"), chickenItem(), nil)
	require.NoError(t, err)

	out := roundTrip(t, doc)
	assert.Equal(t, "/contexts/Chicken", out["@context"])
	assert.Equal(t, "/chickens/1", out["@id"])
	assert.Equal(t, "Chicken", out["@type"])
	assert.Equal(t, "Gertrude", out["name"])
	assert.Equal(t, "2.5", out["weight"])
	assert.Equal(t, "2020-03-01T00:00:00+00:00", out["hatchedAt"])
	assert.Equal(t, float64(12), out["eggs"])
	assert.Equal(t, map[string]any{"color": "red"}, out["tag"])
	assert.Equal(t, "/chicken_coops/2", out["chickenCoop"])
}

func TestNormalizer_GroupsAndEmbedding(t *testing.T) {
	reg := newRegistry(t)
	loader := mapLoader{
		"ChickenCoop/2": {"id": int64(2), "name": "Big coop", "chickens": []any{int64(1)}},
		"Chicken/1":     chickenItem(),
	}
	n := NewNormalizer(reg, loader)

	t.Run("related resource sharing a group is embedded", func(t *testing.T) {
		doc, err := n.Item(context.Background(), reg.MustGet("Chicken"), chickenItem(), []string{"chicken:read"})
		require.NoError(t, err)
		out := roundTrip(t, doc)

		assert.NotContains(t, out, "free")
		assert.NotContains(t, out, "id")
		coop, ok := out["chickenCoop"].(map[string]any)
		require.True(t, ok, "expected embedded coop, got %v", out["chickenCoop"])
		assert.Equal(t, "/chicken_coops/2", coop["@id"])
		assert.Equal(t, "ChickenCoop", coop["@type"])
		assert.Equal(t, "Big coop", coop["name"])
		assert.NotContains(t, coop, "chickens")
	})

	t.Run("cycles fall back to IRIs", func(t *testing.T) {
		doc, err := n.Item(context.Background(), reg.MustGet("ChickenCoop"), loader["ChickenCoop/2"], []string{"coop:read", "chicken:read"})
		require.NoError(t, err)
		out := roundTrip(t, doc)

		chickens, ok := out["chickens"].([]any)
		require.True(t, ok)
		require.Len(t, chickens, 1)
		chicken := chickens[0].(map[string]any)
		assert.Equal(t, "/chickens/1", chicken["@id"])
		assert.Equal(t, "/chicken_coops/2", chicken["chickenCoop"])
	})
}

func TestNormalizer_Collection(t *testing.T) {
	reg := newRegistry(t)
	n := NewNormalizer(reg, nil)
	chicken := reg.MustGet("Chicken")

	tests := []struct {
		name     string
		page     Page
		wantView map[string]any
	}{
		{
			name: "single page without query has no view",
			page: Page{Total: 1, Paginated: true, CurrentPage: 1, ItemsPerPage: 30},
		},
		{
			name: "query without paging",
			page: Page{Total: 1, Paginated: true, CurrentPage: 1, ItemsPerPage: 30, Query: url.Values{"name": {"Gertrude"}}},
			wantView: map[string]any{
				"@id":   "/chickens?name=Gertrude",
				"@type": "hydra:PartialCollectionView",
			},
		},
		{
			name: "middle page",
			page: Page{Total: 7, Paginated: true, CurrentPage: 2, ItemsPerPage: 3, Query: url.Values{"order[name]": {"asc"}}},
			wantView: map[string]any{
				"@id":            "/chickens?order%5Bname%5D=asc&page=2",
				"@type":          "hydra:PartialCollectionView",
				"hydra:first":    "/chickens?order%5Bname%5D=asc&page=1",
				"hydra:last":     "/chickens?order%5Bname%5D=asc&page=3",
				"hydra:previous": "/chickens?order%5Bname%5D=asc&page=1",
				"hydra:next":     "/chickens?order%5Bname%5D=asc&page=3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.page.Resource = chicken
			tt.page.Path = "/chickens"
			tt.page.Members = []metadata.Item{chickenItem()}

			doc, err := n.Collection(context.Background(), tt.page)
			require.NoError(t, err)
			out := roundTrip(t, doc)

			assert.Equal(t, "hydra:Collection", out["@type"])
			assert.Equal(t, "/chickens", out["@id"])
			assert.Equal(t, float64(tt.page.Total), out["hydra:totalItems"])
			assert.Len(t, out["hydra:member"], 1)
			if tt.wantView == nil {
				assert.NotContains(t, out, "hydra:view")
				return
			}
			assert.Equal(t, tt.wantView, out["hydra:view"])
		})
	}
}

func TestSearchTemplate(t *testing.T) {
	doc := roundTrip(t, SearchTemplate("/chickens", []filter.Description{
		{Variable: "name", Property: "name"},
		{Variable: "chickenCoop[]", Property: "chickenCoop", Required: true},
	}))

	assert.Equal(t, "hydra:IriTemplate", doc["@type"])
	assert.Equal(t, "/chickens{?name,chickenCoop[]}", doc["hydra:template"])
	assert.Equal(t, "BasicRepresentation", doc["hydra:variableRepresentation"])
	assert.Equal(t, []any{
		map[string]any{"@type": "IriTemplateMapping", "variable": "name", "property": "name", "required": false},
		map[string]any{"@type": "IriTemplateMapping", "variable": "chickenCoop[]", "property": "chickenCoop", "required": true},
	}, doc["hydra:mapping"])
}

func TestErrorDocuments(t *testing.T) {
	out := roundTrip(t, Error(400, "Parameter not supported"))
	assert.Equal(t, "hydra:Error", out["@type"])
	assert.Equal(t, "Parameter not supported", out["detail"])
	assert.Equal(t, "Parameter not supported", out["hydra:description"])
	assert.Equal(t, float64(400), out["status"])

	out = roundTrip(t, Violations(422, validation.ViolationList{
		{PropertyPath: "name", Message: "This value should not be blank.", Code: "c1051bb4-d103-4f74-8988-acbcafc7fdc3"},
	}))
	assert.Equal(t, "ConstraintViolationList", out["@type"])
	assert.Equal(t, "name: This value should not be blank.", out["detail"])
	violations := out["violations"].([]any)
	require.Len(t, violations, 1)
	assert.Equal(t, "name", violations[0].(map[string]any)["propertyPath"])
}

func TestEntrypointAndContext(t *testing.T) {
	reg := newRegistry(t)

	entry := roundTrip(t, Entrypoint(reg.Resources()))
	assert.Equal(t, "/chicken_coops", entry["chickenCoop"])
	assert.Equal(t, "/chickens", entry["chicken"])

	ctx := roundTrip(t, Context(reg.MustGet("Chicken")))["@context"].(map[string]any)
	assert.Equal(t, map[string]any{"@id": "Chicken/chickenCoop", "@type": "@id"}, ctx["chickenCoop"])
}

func decodeBody(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var body map[string]any
	require.NoError(t, dec.Decode(&body))
	return body
}

func TestNormalizer_Denormalize(t *testing.T) {
	reg := newRegistry(t)
	n := NewNormalizer(reg, nil)
	chicken := reg.MustGet("Chicken")
	write := []string{"chicken:write"}

	item, err := n.Denormalize(chicken, decodeBody(t, `{
		"id": 99,
		"name": "Gertrude",
		"weight": "2.50",
		"hatchedAt": "2020-03-01T10:30:00+02:00",
		"eggs": 12,
		"free": true,
		"tag": {"color": "red"},
		"chickenCoop": "/chicken_coops/2",
		"unknown": "ignored"
	}`), write)
	require.NoError(t, err)

	assert.NotContains(t, item, "id")
	assert.NotContains(t, item, "unknown")
	assert.Equal(t, "Gertrude", item["name"])
	assert.True(t, decimal.RequireFromString("2.5").Equal(item["weight"].(decimal.Decimal)))
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), item["hatchedAt"])
	assert.Equal(t, int64(12), item["eggs"])
	assert.Equal(t, true, item["free"])
	assert.Equal(t, metadata.Item{"color": "red"}, item["tag"])
	assert.Equal(t, int64(2), item["chickenCoop"])

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"wrong scalar type", `{"name": 3}`, `The type of the "name" attribute must be "string", "number" given.`},
		{"fractional int", `{"eggs": 1.5}`, `The type of the "eggs" attribute must be "int", "number" given.`},
		{"bad date", `{"hatchedAt": "yesterday"}`, `Failed to parse time string (yesterday) for "hatchedAt".`},
		{"foreign IRI", `{"chickenCoop": "/chickens/1"}`, `Invalid IRI "/chickens/1".`},
		{"embedded type", `{"tag": {"color": false}}`, `The type of the "tag.color" attribute must be "string", "bool" given.`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Denormalize(chicken, decodeBody(t, tt.body), write)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.message, err.Error())
		})
	}
}
