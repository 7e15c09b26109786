package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/httputil"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int `yaml:"requests_per_window"`
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration `yaml:"window"`
}

// ReadRateLimitConfig returns the default budget for GET and HEAD requests.
func ReadRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 300,
		WindowDuration:    time.Minute,
	}
}

// WriteRateLimitConfig returns the default budget for mutating requests.
func WriteRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 80,
		WindowDuration:    time.Minute,
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key within fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RateLimiter is an in-process fixed-window Limiter.
type RateLimiter struct {
	config  *RateLimitConfig
	now     func() time.Time
	windows map[string]*window
	mu      sync.Mutex
}

type window struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = ReadRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// WithClock overrides the limiter's clock.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	rl.now = now
	return rl
}

// Allow implements Limiter. It never returns an error.
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(rl.config.WindowDuration)}
		rl.windows[key] = w
	}
	w.count++

	return decide(w.count, rl.config.RequestsPerWindow, w.resetAt), nil
}

// Cleanup removes expired windows (should be called periodically)
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, key)
		}
	}
}

// StartCleanup starts a background goroutine to cleanup old windows
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

const (
	msgTooManyReads  = "Too many API requests. Please try again shortly."
	msgTooManyWrites = "Too many write requests. Please try again shortly."
)

// RateLimitMiddleware admits /api/ requests per client IP, with separate
// budgets for reads and writes. Limiter failures let the request through.
type RateLimitMiddleware struct {
	read     Limiter
	write    Limiter
	logger   logrus.FieldLogger
	rejected *prometheus.CounterVec
}

// RateLimitOption configures a RateLimitMiddleware
type RateLimitOption func(*RateLimitMiddleware)

// WithRejectionCounter counts rejected requests by class ("read" or "write").
func WithRejectionCounter(c *prometheus.CounterVec) RateLimitOption {
	return func(m *RateLimitMiddleware) { m.rejected = c }
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(read, write Limiter, logger logrus.FieldLogger, opts ...RateLimitOption) *RateLimitMiddleware {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &RateLimitMiddleware{read: read, write: write, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		limiter, msg, class := m.write, msgTooManyWrites, "write"
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			limiter, msg, class = m.read, msgTooManyReads, "read"
		}

		ip := httputil.ClientIP(r)
		d, err := limiter.Allow(r.Context(), "ip:"+ip)
		if err != nil {
			m.logger.WithError(err).WithField("client_ip", ip).Warn("Rate limiter unavailable, admitting request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			retryAfter := int(time.Until(d.ResetAt).Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			if m.rejected != nil {
				m.rejected.WithLabelValues(class).Inc()
			}
			httputil.WriteErrorMessage(w, http.StatusTooManyRequests, string(apperr.KindTooManyRequests), msg)
			return
		}

		next.ServeHTTP(w, r)
	})
}
