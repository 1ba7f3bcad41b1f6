package apitest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/api"
	"github.com/platinummonkey/gantry/pkg/fixtures"
	"github.com/platinummonkey/gantry/pkg/observability"
)

func seedSecured(t *testing.T, k *Kernel) (dunglas, kevin string) {
	t.Helper()
	items, err := fixtures.SeedSecuredDummies(context.Background(), k.Manager, "dunglas", "kevin")
	require.NoError(t, err)
	return fmt.Sprintf("/secured_dummies/%d", items[0].ID), fmt.Sprintf("/secured_dummies/%d", items[1].ID)
}

func TestSecurity_ResourceExpression(t *testing.T) {
	k := New(t)
	seedSecured(t, k)

	resp := k.Get("/secured_dummies")
	assert.Equal(t, 401, resp.Status)
	assert.Equal(t, "Full authentication is required to access this resource.", resp.Description())

	resp = k.Request(http.MethodGet, "/secured_dummies", nil, UserToken)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, 2, resp.Total())

	resp = k.Request(http.MethodGet, "/secured_dummies?owner=kevin", nil, UserToken)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, []any{"kevin"}, resp.Values("owner"))
}

func TestSecurity_Authentication(t *testing.T) {
	k := New(t)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"unknown token", "Bearer nope", "Invalid credentials."},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "Invalid authorization header format."},
		{"empty bearer", "Bearer ", "Invalid authorization header format."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/dummies", nil)
			req.Header.Set("Authorization", tt.header)
			w := httptest.NewRecorder()
			k.Server.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)
			assert.Contains(t, w.Body.String(), "hydra:Error")
		})
	}

	t.Run("public resources stay open to anonymous callers", func(t *testing.T) {
		resp := k.Get("/dummies")
		assert.Equal(t, 200, resp.Status)
	})
}

func TestSecurity_ItemRead(t *testing.T) {
	k := New(t)
	dunglas, kevin := seedSecured(t, k)

	resp := k.Request(http.MethodGet, dunglas, nil, UserToken)
	require.Equal(t, 200, resp.Status)
	assert.Equal(t, "dunglas", resp.Body["owner"])

	resp = k.Request(http.MethodGet, kevin, nil, UserToken)
	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, "Sorry, but you are not the owner of this item.", resp.Description())

	resp = k.Request(http.MethodGet, kevin, nil, AdminToken)
	assert.Equal(t, 200, resp.Status)

	resp = k.Get(dunglas)
	assert.Equal(t, 401, resp.Status)
}

func TestSecurity_Create(t *testing.T) {
	k := New(t)

	resp := k.Request(http.MethodPost, "/secured_dummies",
		map[string]any{"title": "mine", "owner": "dunglas"}, UserToken)
	require.Equal(t, 201, resp.Status, string(resp.Raw))
	assert.Equal(t, "dunglas", resp.Body["owner"])

	resp = k.Request(http.MethodPost, "/secured_dummies",
		map[string]any{"title": "theirs", "owner": "kevin"}, UserToken)
	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, "Only admins can create items for other users.", resp.Description())

	resp = k.Request(http.MethodPost, "/secured_dummies",
		map[string]any{"title": "for kevin", "owner": "kevin"}, AdminToken)
	assert.Equal(t, 201, resp.Status)

	t.Run("denial comes before validation", func(t *testing.T) {
		resp := k.Request(http.MethodPost, "/secured_dummies", map[string]any{"owner": "kevin"}, UserToken)
		assert.Equal(t, 403, resp.Status)

		resp = k.Request(http.MethodPost, "/secured_dummies", map[string]any{"owner": "dunglas"}, UserToken)
		assert.Equal(t, 422, resp.Status)
		assert.Equal(t, "This value should not be blank.", resp.Violations()["title"])
	})

	resp = k.Request(http.MethodGet, "/secured_dummies", nil, AdminToken)
	assert.Equal(t, 2, resp.Total())
}

func TestSecurity_Update(t *testing.T) {
	k := New(t)
	dunglas, kevin := seedSecured(t, k)

	resp := k.Request(http.MethodPut, dunglas, map[string]any{"title": "renamed"}, UserToken)
	require.Equal(t, 200, resp.Status, string(resp.Raw))
	assert.Equal(t, "renamed", resp.Body["title"])
	assert.Equal(t, "dunglas", resp.Body["owner"])

	t.Run("owner cannot give items away", func(t *testing.T) {
		resp := k.Request(http.MethodPut, dunglas, map[string]any{"owner": "kevin"}, UserToken)
		assert.Equal(t, 403, resp.Status)

		resp = k.Request(http.MethodGet, dunglas, nil, UserToken)
		assert.Equal(t, "dunglas", resp.Body["owner"])
	})

	t.Run("other users are denied before reading input", func(t *testing.T) {
		resp := k.Request(http.MethodPut, kevin, "not json", UserToken)
		assert.Equal(t, 403, resp.Status)
	})

	t.Run("admins reassign owners", func(t *testing.T) {
		resp := k.Request(http.MethodPut, kevin, map[string]any{"owner": "dunglas"}, AdminToken)
		require.Equal(t, 200, resp.Status)
		assert.Equal(t, "dunglas", resp.Body["owner"])
	})

	t.Run("patch is not exposed", func(t *testing.T) {
		resp := k.Request(http.MethodPatch, dunglas, map[string]any{"title": "x"}, AdminToken)
		assert.Equal(t, 405, resp.Status)
	})
}

func TestSecurity_Delete(t *testing.T) {
	k := New(t)
	dunglas, _ := seedSecured(t, k)

	resp := k.Request(http.MethodDelete, dunglas, nil, UserToken)
	assert.Equal(t, 403, resp.Status)
	assert.Equal(t, "Only admins can delete items.", resp.Description())

	resp = k.Request(http.MethodDelete, dunglas, nil, AdminToken)
	assert.Equal(t, 204, resp.Status)
	assert.Empty(t, resp.Raw)

	resp = k.Request(http.MethodGet, dunglas, nil, AdminToken)
	assert.Equal(t, 404, resp.Status)
}

func TestSecurity_DenialMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	k := New(t, WithServerOptions(api.WithMetrics(metrics, registry)))
	_, kevin := seedSecured(t, k)

	k.Get("/secured_dummies")
	k.Request(http.MethodGet, kevin, nil, UserToken)
	k.Request(http.MethodDelete, kevin, nil, UserToken)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SecurityDenialsTotal.WithLabelValues("SecuredDummy", "401")))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.SecurityDenialsTotal.WithLabelValues("SecuredDummy", "403")))

	resp := k.Get("/metrics")
	require.Equal(t, 200, resp.Status)
	assert.Contains(t, string(resp.Raw), "security_denials_total")
}
