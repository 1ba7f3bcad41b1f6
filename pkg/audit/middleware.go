package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/gantry/pkg/contextkeys"
	"github.com/platinummonkey/gantry/pkg/middleware"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/security"
)

// Middleware records an event for every write and every refused request.
// Handler runs on the router; Denials covers refusals written before
// routing, such as rejected bearer tokens.
type Middleware struct {
	logger  Logger
	errors  *observability.Logger
	timeout time.Duration
	router  *mux.Router
}

// NewMiddleware creates an audit middleware. Failures to record an event
// are reported on errLogger and never fail the request.
func NewMiddleware(logger Logger, errLogger *observability.Logger) *Middleware {
	return &Middleware{logger: logger, errors: errLogger, timeout: 5 * time.Second}
}

// WithRouter lets events recorded outside the router carry the path
// template of the route the request would have reached
func (m *Middleware) WithRouter(router *mux.Router) *Middleware {
	m.router = router
	return m
}

// responseWriter captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Handler wraps an HTTP handler with audit logging
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		m.record(r, start, wrapped.statusCode)
	})
}

// Denials wraps the error writer of middleware running ahead of the router
// so that the refusals it writes are recorded
func (m *Middleware) Denials(next middleware.ErrorWriter) middleware.ErrorWriter {
	if next == nil {
		next = middleware.JSONError
	}
	return func(w http.ResponseWriter, r *http.Request, status int, message string) {
		start := time.Now()
		next(w, r, status, message)
		m.record(r, start, status)
	}
}

func (m *Middleware) record(r *http.Request, start time.Time, statusCode int) {
	action, ok := ActionFor(r.Method, statusCode)
	if !ok {
		return
	}
	event := &Event{
		Timestamp:  start.UTC(),
		Action:     action,
		Status:     StatusFor(statusCode),
		Method:     r.Method,
		Path:       r.URL.Path,
		Route:      m.route(r),
		StatusCode: statusCode,
		DurationMS: time.Since(start).Milliseconds(),
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  r.UserAgent(),
		RequestID:  contextkeys.GetRequestID(r.Context()),
	}
	if user := security.UserFromContext(r.Context()); user != nil {
		event.Username = user.Username
	}

	// the request context may already be cancelled by the client
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), m.timeout)
	defer cancel()
	if err := m.logger.Log(ctx, event); err != nil {
		m.errors.WithError(err).WithField("path", event.Path).Error("failed to record audit event")
	}
}

func (m *Middleware) route(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil && m.router != nil {
		var match mux.RouteMatch
		if m.router.Match(r, &match) {
			route = match.Route
		}
	}
	if route == nil {
		return ""
	}
	template, _ := route.GetPathTemplate()
	return template
}
