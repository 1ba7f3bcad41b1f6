package middleware

import (
	"net/http"

	"github.com/platinummonkey/gantry/pkg/security"
)

// ErrorWriter renders a middleware failure
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, message string)

// JSONError is the default ErrorWriter
func JSONError(w http.ResponseWriter, _ *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// AuthMiddleware provides bearer token authentication
type AuthMiddleware struct {
	tokens  *security.TokenTable
	onError ErrorWriter
}

// NewAuthMiddleware creates a new authentication middleware. Requests
// without an Authorization header continue anonymously.
func NewAuthMiddleware(tokens *security.TokenTable, onError ErrorWriter) *AuthMiddleware {
	if onError == nil {
		onError = JSONError
	}
	return &AuthMiddleware{
		tokens:  tokens,
		onError: onError,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := security.BearerToken(authHeader)
		if !ok {
			m.onError(w, r, http.StatusUnauthorized, "Invalid authorization header format.")
			return
		}

		user, ok := m.tokens.Lookup(token)
		if !ok {
			m.onError(w, r, http.StatusUnauthorized, "Invalid credentials.")
			return
		}

		ctx := security.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole creates middleware that rejects callers without role
func RequireRole(checker *security.Checker, role string, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = JSONError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := security.UserFromContext(r.Context())
			if user == nil {
				onError(w, r, http.StatusUnauthorized, security.MessageAuthenticationRequired)
				return
			}
			if !checker.HasRole(user, role) {
				onError(w, r, http.StatusForbidden, security.MessageAccessDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
