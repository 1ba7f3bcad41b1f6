package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/contextkeys"
	"github.com/platinummonkey/gantry/pkg/observability"
)

func TestParseJSON(t *testing.T) {
	t.Run("valid body keeps numbers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/dummies", strings.NewReader(`{"name":"foo","price":"10.99","count":3}`))
		var dest map[string]interface{}

		require.NoError(t, ParseJSON(req, &dest))
		assert.Equal(t, "foo", dest["name"])
		assert.Equal(t, json.Number("3"), dest["count"])
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/dummies", strings.NewReader(""))
		var dest map[string]interface{}

		assert.ErrorIs(t, ParseJSON(req, &dest), ErrEmptyBody)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/dummies", strings.NewReader(`{"name":`))
		var dest map[string]interface{}

		err := ParseJSON(req, &dest)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}

func TestParsePathString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dummies/7", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "7"})

	id, err := ParsePathString(req, "id")
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	_, err = ParsePathString(req, "slug")
	assert.Error(t, err)
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantInt int
		wantErr bool
	}{
		{name: "default", url: "/dummies", wantInt: 1},
		{name: "explicit", url: "/dummies?page=3", wantInt: 3},
		{name: "invalid", url: "/dummies?page=abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			got, err := ParseQueryInt(req, "page", 1)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInt, got)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/dummies?pagination=false", nil)
	enabled, err := ParseQueryBool(req, "pagination", true)
	require.NoError(t, err)
	assert.False(t, enabled)

	req = httptest.NewRequest(http.MethodGet, "/dummies?pagination=maybe", nil)
	_, err = ParseQueryBool(req, "pagination", true)
	assert.Error(t, err)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
}

func TestContentTypeMiddleware(t *testing.T) {
	handler := ContentTypeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	tests := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodPost, "application/ld+json", http.StatusCreated},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusCreated},
		{http.MethodPatch, "application/merge-patch+json", http.StatusCreated},
		{http.MethodPut, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.contentType, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/dummies", strings.NewReader("{}"))
			req.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, &strings.Builder{})
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/dummies", nil)
	req.Header.Set("Origin", "https://example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/dummies", nil)
	req.Header.Set("Origin", "https://other.test")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestChain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(mw("a"), mw("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}
