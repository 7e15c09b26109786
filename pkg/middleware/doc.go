// Package middleware provides HTTP admission middleware: rate limiting, the
// read-only demo guard, request ids and session/permission checks.
//
// Request flow for /api/ routes:
//
//	RequestID -> RateLimitMiddleware -> DemoGuard -> RequireSession | RequirePermission -> handler
//
// # Rate Limiting
//
// Budgets are per client IP and fixed-window: 300 reads and 80 writes per
// minute by default. RateLimiter keeps windows in process memory;
// DistributedRateLimiter shares them through Redis. A limiter error admits
// the request and logs a warning.
//
//	mw := middleware.NewRateLimitMiddleware(
//		middleware.NewDistributedRateLimiter(rdb, middleware.ReadRateLimitConfig(), "ratelimit:read"),
//		middleware.NewDistributedRateLimiter(rdb, middleware.WriteRateLimitConfig(), "ratelimit:write"),
//		logger,
//	)
//	router.Use(mw.Handler)
//
// # Demo Guard
//
// Organizations named in the demo slug list are read-only. Writes made while
// one of them is the active organization get 403 with code PREVIEW_READ_ONLY.
//
// # Related Packages
//
//   - pkg/authz: the gateway behind RequireSession and RequirePermission
//   - pkg/orgcache: slug to id cache used by the demo guard
package middleware
