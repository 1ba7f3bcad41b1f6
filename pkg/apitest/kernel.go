package apitest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/gantry/pkg/api"
	"github.com/platinummonkey/gantry/pkg/fixtures"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/query"
	"github.com/platinummonkey/gantry/pkg/security"
	"github.com/platinummonkey/gantry/pkg/storage"
	"github.com/platinummonkey/gantry/pkg/storage/sqlstore"
)

// Bearer tokens known to every kernel
const (
	AdminToken = "admin-token"
	UserToken  = "dunglas-token"
	OtherToken = "kevin-token"
)

// Kernel is a fixture API backed by a private in-memory database
type Kernel struct {
	t        testing.TB
	Registry *metadata.Registry
	Store    storage.Store
	Manager  *storage.Manager
	Server   *api.Server
}

// KernelOption configures a kernel
type KernelOption func(*kernelConfig)

type kernelConfig struct {
	dialect  query.Dialect
	dsn      string
	overlays []*metadata.Overlay
	store    func(storage.Store) storage.Store
	server   []api.Option
}

// WithOverlay applies an overlay to the fixture registry
func WithOverlay(o *metadata.Overlay) KernelOption {
	return func(c *kernelConfig) { c.overlays = append(c.overlays, o) }
}

// WithDatabase runs the kernel on an external database instead of a
// private in-memory SQLite one
func WithDatabase(dialect query.Dialect, dsn string) KernelOption {
	return func(c *kernelConfig) {
		c.dialect = dialect
		c.dsn = dsn
	}
}

// WithStoreWrapper decorates the store, e.g. with a cache
func WithStoreWrapper(wrap func(storage.Store) storage.Store) KernelOption {
	return func(c *kernelConfig) { c.store = wrap }
}

// WithServerOptions passes extra options to the server
func WithServerOptions(opts ...api.Option) KernelOption {
	return func(c *kernelConfig) { c.server = append(c.server, opts...) }
}

// Tokens returns the token table shared by kernels: an admin, and two
// users named dunglas and kevin
func Tokens() *security.TokenTable {
	tokens := security.NewTokenTable()
	tokens.Add(AdminToken, security.User{Username: "admin", Roles: []string{"ROLE_ADMIN"}})
	tokens.Add(UserToken, security.User{Username: "dunglas", Roles: []string{"ROLE_USER"}})
	tokens.Add(OtherToken, security.User{Username: "kevin", Roles: []string{"ROLE_USER"}})
	return tokens
}

// New boots a kernel on a fresh SQLite schema
func New(t testing.TB, opts ...KernelOption) *Kernel {
	t.Helper()
	cfg := &kernelConfig{
		dialect: query.SQLite,
		dsn:     "file:" + uuid.NewString() + "?mode=memory&cache=shared&_cslike=1",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	reg, err := fixtures.NewRegistry(cfg.overlays...)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	conn, err := sqlstore.NewConnectionManager(sqlstore.ConnectionConfig{
		Dialect:    cfg.dialect,
		PrimaryDSN: cfg.dsn,
		Logger:     logger,
	})
	require.NoError(t, err)

	var store storage.Store = sqlstore.New(conn, reg, sqlstore.WithLogger(logger))
	if cfg.store != nil {
		store = cfg.store(store)
	}
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.RecreateSchema(context.Background(), reg.Resources()))

	serverOpts := append([]api.Option{api.WithLogger(logger), api.WithTokens(Tokens())}, cfg.server...)
	server, err := api.NewServer(reg, store, serverOpts...)
	require.NoError(t, err)

	return &Kernel{
		t:        t,
		Registry: reg,
		Store:    store,
		Manager:  storage.NewManager(store, reg),
		Server:   server,
	}
}

// Response is a recorded API response
type Response struct {
	Status int
	Header http.Header
	Raw    []byte
	Body   map[string]any
}

// Request sends a request, encoding body as JSON unless it is a string,
// and decodes a JSON object response
func (k *Kernel) Request(method, target string, body any, token string) *Response {
	k.t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(k.t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Accept", "application/ld+json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/ld+json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	k.Server.ServeHTTP(w, req)

	resp := &Response{Status: w.Code, Header: w.Header(), Raw: w.Body.Bytes()}
	if len(resp.Raw) > 0 && resp.Raw[0] == '{' {
		require.NoError(k.t, json.Unmarshal(resp.Raw, &resp.Body), string(resp.Raw))
	}
	return resp
}

// Get sends an anonymous GET
func (k *Kernel) Get(target string) *Response {
	k.t.Helper()
	return k.Request(http.MethodGet, target, nil, "")
}

// Members returns hydra:member of a collection response
func (r *Response) Members() []map[string]any {
	raw, _ := r.Body["hydra:member"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, m := range raw {
		if doc, ok := m.(map[string]any); ok {
			out = append(out, doc)
		}
	}
	return out
}

// IDs returns the @id of every member
func (r *Response) IDs() []string {
	members := r.Members()
	out := make([]string, len(members))
	for i, m := range members {
		out[i], _ = m["@id"].(string)
	}
	return out
}

// Values returns one property of every member
func (r *Response) Values(property string) []any {
	members := r.Members()
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = m[property]
	}
	return out
}

// Total returns hydra:totalItems
func (r *Response) Total() int {
	n, _ := r.Body["hydra:totalItems"].(float64)
	return int(n)
}

// View returns hydra:view, nil when absent
func (r *Response) View() map[string]any {
	view, _ := r.Body["hydra:view"].(map[string]any)
	return view
}

// Description returns the detail of an error response
func (r *Response) Description() string {
	s, _ := r.Body["hydra:description"].(string)
	return s
}

// Violations maps property paths to violation messages
func (r *Response) Violations() map[string]string {
	raw, _ := r.Body["violations"].([]any)
	out := make(map[string]string, len(raw))
	for _, v := range raw {
		doc, ok := v.(map[string]any)
		if !ok {
			continue
		}
		path, _ := doc["propertyPath"].(string)
		message, _ := doc["message"].(string)
		out[path] = message
	}
	return out
}
