package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/gantry/pkg/audit"
	"github.com/platinummonkey/gantry/pkg/filter"
	"github.com/platinummonkey/gantry/pkg/httputil"
	"github.com/platinummonkey/gantry/pkg/hydra"
	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/middleware"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/security"
	"github.com/platinummonkey/gantry/pkg/storage"
	"github.com/platinummonkey/gantry/pkg/swagger"
	"github.com/platinummonkey/gantry/pkg/validation"
)

// Pagination query parameters
const (
	PageParameter         = "page"
	ItemsPerPageParameter = "itemsPerPage"
	PaginationParameter   = "pagination"
)

// DefaultMaxBodyBytes caps request bodies
const DefaultMaxBodyBytes = 1 << 20

// Server exposes the resources of a registry as a Hydra API
type Server struct {
	reg        *metadata.Registry
	store      storage.Store
	normalizer *hydra.Normalizer
	checker    *security.Checker
	validator  *validation.Validator
	filters    map[string]*filter.Set

	router  *mux.Router
	handler http.Handler

	logger          *observability.Logger
	metrics         *observability.Metrics
	metricsRegistry *prometheus.Registry
	health          *observability.HealthChecker
	tokens          *security.TokenTable
	rateLimit       *middleware.RateLimitMiddleware
	corsOrigins     []string
	maxBodyBytes    int64
	tracing         bool
	audit           audit.Logger
	info            swagger.Info
	docs            *swagger.Handlers
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request and API metrics and serves /metrics
func WithMetrics(m *observability.Metrics, registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsRegistry = registry
	}
}

// WithHealth serves the health endpoints of checker
func WithHealth(checker *observability.HealthChecker) Option {
	return func(s *Server) { s.health = checker }
}

// WithTokens authenticates bearer tokens against tokens
func WithTokens(tokens *security.TokenTable) Option {
	return func(s *Server) { s.tokens = tokens }
}

// WithRoleHierarchy replaces the default role hierarchy
func WithRoleHierarchy(hierarchy security.RoleHierarchy) Option {
	return func(s *Server) { s.checker = security.NewChecker(hierarchy) }
}

// WithRateLimit limits authenticated and anonymous callers separately
func WithRateLimit(user, anonymous middleware.Limiter) Option {
	return func(s *Server) {
		s.rateLimit = middleware.NewRateLimitMiddleware(user, anonymous, writeMiddlewareError)
	}
}

// WithCORS allows cross origin requests from origins
func WithCORS(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithMaxBodyBytes caps request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBodyBytes = n }
}

// WithAudit records writes and access denials
func WithAudit(logger audit.Logger) Option {
	return func(s *Server) { s.audit = logger }
}

// WithAPIInfo sets the title and version of the OpenAPI document
func WithAPIInfo(title, version string) Option {
	return func(s *Server) {
		s.info.Title = title
		s.info.Version = version
	}
}

// WithTracing wraps the handler in otelhttp
func WithTracing() Option {
	return func(s *Server) { s.tracing = true }
}

// NewServer creates a server for every resource of reg. The registry must
// be resolved; security expressions, constraints and filters are compiled
// up front so configuration errors surface here.
func NewServer(reg *metadata.Registry, store storage.Store, opts ...Option) (*Server, error) {
	if !reg.Resolved() {
		return nil, fmt.Errorf("registry is not resolved")
	}
	s := &Server{
		reg:          reg,
		store:        store,
		normalizer:   hydra.NewNormalizer(reg, store),
		checker:      security.NewChecker(nil),
		validator:    validation.NewValidator(),
		filters:      make(map[string]*filter.Set),
		router:       mux.NewRouter(),
		maxBodyBytes: DefaultMaxBodyBytes,
		info:         swagger.Info{Title: "gantry", Version: "1.0.0"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	for _, res := range reg.Resources() {
		if err := s.checker.CheckResource(res); err != nil {
			return nil, err
		}
		if err := s.validator.CheckResource(res); err != nil {
			return nil, err
		}
		set, err := filter.NewSet(res, reg, PageParameter, ItemsPerPageParameter, PaginationParameter)
		if err != nil {
			return nil, err
		}
		s.filters[res.Name] = set
		for _, link := range res.Links {
			if _, ok := reg.Get(link.FromClass); !ok {
				return nil, fmt.Errorf("resource %s link %s: %s: %w", res.Name, link.Path, link.FromClass, metadata.ErrUnknownResource)
			}
		}
	}

	docs, err := swagger.NewHandlers(swagger.Generate(reg, s.info, s.describeFilters))
	if err != nil {
		return nil, err
	}
	s.docs = docs

	s.setupRoutes()
	s.handler = s.buildHandler()
	if s.metrics != nil {
		s.metrics.ResourcesRegistered.Set(float64(len(reg.Resources())))
	}
	return s, nil
}

func (s *Server) describeFilters(res *metadata.Resource) []filter.Description {
	return s.filters[res.Name].Describe()
}

// Router exposes the underlying router, e.g. to mount extra routes
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// buildHandler wraps the router in the middleware chain. Route aware
// middleware is installed on the router itself.
func (s *Server) buildHandler() http.Handler {
	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}
	var auditing *audit.Middleware
	if s.audit != nil {
		auditing = audit.NewMiddleware(s.audit, s.logger).WithRouter(s.router)
		s.router.Use(auditing.Handler)
	}

	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
	}
	if len(s.corsOrigins) > 0 {
		chain = append(chain, httputil.CORSMiddleware(s.corsOrigins))
	}
	chain = append(chain,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(s.maxBodyBytes),
	)
	if s.tokens != nil {
		onError := middleware.ErrorWriter(writeMiddlewareError)
		if auditing != nil {
			onError = auditing.Denials(onError)
		}
		chain = append(chain, middleware.NewAuthMiddleware(s.tokens, onError).Handler)
	}
	if s.rateLimit != nil {
		chain = append(chain, s.rateLimit.Handler)
	}

	handler := httputil.Chain(chain...)(s.router)
	if s.tracing {
		handler = otelhttp.NewHandler(handler, "gantry",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return handler
}

// writeMiddlewareError renders middleware failures as hydra errors
func writeMiddlewareError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	httputil.WriteJSONLD(w, status, hydra.Error(status, message))
}
