// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer token authentication
//
//	auth := middleware.NewAuthMiddleware(tokens, writeError)
//	router.Use(auth.Handler)
//	// Looks up the token, stores the *security.User in the request context.
//	// Requests without a header continue anonymously.
//
// RateLimitMiddleware: per user or per IP limits over any Limiter
//
//	limits := middleware.NewRateLimitMiddleware(
//		middleware.NewRateLimiter(middleware.PerUserRateLimitConfig()),
//		middleware.NewDistributedRateLimiter(redisClient, nil, ""),
//		writeError,
//	)
//	router.Use(limits.Handler)
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-User: 1000 req/min, 50 burst
//
// The in-memory RateLimiter is a token bucket. DistributedRateLimiter
// counts requests in Redis, renewing the window on each request, and
// ignores BurstSize.
//
// # Related Packages
//
//   - pkg/security: token table and roles
package middleware
