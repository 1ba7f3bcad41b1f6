package apitest

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/api"
	"github.com/platinummonkey/gantry/pkg/observability"
)

func TestValidation_Constraints(t *testing.T) {
	k := New(t)

	tests := []struct {
		name       string
		body       map[string]any
		violations map[string]string
	}{
		{
			name:       "valid",
			body:       map[string]any{"name": "ok", "email": "a@b.io", "age": 30, "category": "a", "code": "ABC", "score": 3},
			violations: nil,
		},
		{
			name:       "optional values may be omitted",
			body:       map[string]any{"name": "ok"},
			violations: nil,
		},
		{
			name:       "blank name",
			body:       map[string]any{"name": ""},
			violations: map[string]string{"name": "This value should not be blank."},
		},
		{
			name:       "missing name",
			body:       map[string]any{"category": "b"},
			violations: map[string]string{"name": "This value should not be blank."},
		},
		{
			name:       "name too long",
			body:       map[string]any{"name": "abcdefghijk"},
			violations: map[string]string{"name": "This value is too long. It should have 10 characters or less."},
		},
		{
			name:       "bad email",
			body:       map[string]any{"name": "ok", "email": "nope"},
			violations: map[string]string{"email": "This value is not a valid email address."},
		},
		{
			name:       "age out of range",
			body:       map[string]any{"name": "ok", "age": 151},
			violations: map[string]string{"age": "This value should be between 0 and 150."},
		},
		{
			name:       "unknown category",
			body:       map[string]any{"name": "ok", "category": "z"},
			violations: map[string]string{"category": "The value you selected is not a valid choice."},
		},
		{
			name:       "code does not match",
			body:       map[string]any{"name": "ok", "code": "abc"},
			violations: map[string]string{"code": "This value is not valid."},
		},
		{
			name:       "negative score",
			body:       map[string]any{"name": "ok", "score": -1},
			violations: map[string]string{"score": "This value should be positive."},
		},
		{
			name: "every violation is reported",
			body: map[string]any{"name": "", "email": "x", "age": -1, "category": "d", "code": "1", "score": 0},
			violations: map[string]string{
				"name":     "This value should not be blank.",
				"email":    "This value is not a valid email address.",
				"age":      "This value should be between 0 and 150.",
				"category": "The value you selected is not a valid choice.",
				"code":     "This value is not valid.",
				"score":    "This value should be positive.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := k.Request(http.MethodPost, "/validated_dummies", tt.body, "")
			if tt.violations == nil {
				assert.Equal(t, 201, resp.Status, string(resp.Raw))
				return
			}
			require.Equal(t, 422, resp.Status, string(resp.Raw))
			assert.Equal(t, "ConstraintViolationList", resp.Body["@type"])
			assert.Equal(t, tt.violations, resp.Violations())
		})
	}
}

func TestValidation_NothingIsStoredOnFailure(t *testing.T) {
	k := New(t)

	resp := k.Request(http.MethodPost, "/validated_dummies", map[string]any{"name": "way too long name"}, "")
	require.Equal(t, 422, resp.Status)

	resp = k.Get("/validated_dummies")
	assert.Equal(t, 0, resp.Total())
}

func TestValidation_UpdateChecksMergedItem(t *testing.T) {
	k := New(t)
	resp := k.Request(http.MethodPost, "/validated_dummies", map[string]any{"name": "ok", "category": "a"}, "")
	require.Equal(t, 201, resp.Status)
	iri := resp.Body["@id"].(string)

	resp = k.Request(http.MethodPut, iri, map[string]any{"age": 200}, "")
	assert.Equal(t, 422, resp.Status)
	assert.Equal(t, map[string]string{"age": "This value should be between 0 and 150."}, resp.Violations())

	resp = k.Request(http.MethodPut, iri, map[string]any{"age": 42}, "")
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "ok", resp.Body["name"])
	assert.Equal(t, "a", resp.Body["category"])
	assert.Equal(t, float64(42), resp.Body["age"])
}

func TestValidation_MalformedInput(t *testing.T) {
	k := New(t)

	tests := []struct {
		name    string
		body    any
		message string
	}{
		{"wrong type", map[string]any{"name": 12}, `The type of the "name" attribute must be "string", "number" given.`},
		{"bool for an int", map[string]any{"name": "ok", "age": true}, `The type of the "age" attribute must be "int", "bool" given.`},
		{"empty body", "", "Syntax error"},
		{"invalid json", "{nope", "Syntax error"},
		{"array body", "[]", "The input data must be an object."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := k.Request(http.MethodPost, "/validated_dummies", tt.body, "")
			assert.Equal(t, 400, resp.Status, string(resp.Raw))
			assert.Equal(t, "hydra:Error", resp.Body["@type"])
			assert.Equal(t, tt.message, resp.Description())
		})
	}
}

func TestValidation_ViolationMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	k := New(t, WithServerOptions(api.WithMetrics(metrics, registry)))

	k.Request(http.MethodPost, "/validated_dummies", map[string]any{"name": "", "score": -3}, "")
	k.Request(http.MethodPost, "/validated_dummies", map[string]any{"name": "ok"}, "")

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ValidationViolationsTotal.WithLabelValues("ValidatedDummy")))
}
