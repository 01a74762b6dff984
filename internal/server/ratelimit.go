package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterResetInterval bounds how long idle client limiters are kept.
const limiterResetInterval = time.Hour

// RateLimiter limits requests per client IP with a token bucket.
// Each client may spend Requests tokens per Window, refilled evenly.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time

	limit rate.Limit
	burst int
	now   func() time.Time
}

// NewRateLimiter allows requests per window for each client.
// A non-positive window only enforces the burst of requests.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	limit := rate.Limit(0)
	if window > 0 {
		limit = rate.Limit(float64(requests) / window.Seconds())
	}
	return &RateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		limit:       limit,
		burst:       requests,
		now:         time.Now,
	}
}

// Allow reports whether the client identified by key may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).AllowN(rl.now(), 1)
}

// limiter returns the limiter for key, creating it on first use.
// All limiters are dropped once an hour to bound memory.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.now().Sub(rl.lastCleanup) > limiterResetInterval {
		rl.limiters = make(map[string]*rate.Limiter)
		rl.lastCleanup = rl.now()
	}

	l, ok := rl.limiters[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = l
	}
	return l
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.Allow(ip) {
				logger.Warn("rate limit exceeded", zap.String("ip", ip))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
