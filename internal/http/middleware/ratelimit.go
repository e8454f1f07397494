package middleware

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/jmehdipour/leadsite/internal/metrics"
	"github.com/jmehdipour/leadsite/internal/ratelimit"
)

// RateLimitConfig binds one endpoint to its limiter.
type RateLimitConfig struct {
	Endpoint string // metrics label and log field
	Limiter  ratelimit.Limiter
	Message  string // user-facing 429 text
	Log      *zap.Logger
}

// RateLimitMiddleware limits requests per client IP. A limiter error lets the
// request through.
func RateLimitMiddleware(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Message == "" {
		cfg.Message = "Too many requests. Please try again later."
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Limiter == nil {
				return next(c)
			}

			ip := c.RealIP()
			d, err := cfg.Limiter.Allow(c.Request().Context(), ip)
			if err != nil {
				cfg.Log.Warn("rate limiter failed, allowing request",
					zap.String("endpoint", cfg.Endpoint), zap.Error(err))
				return next(c)
			}

			if d.Limit > 0 {
				c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if !d.Allowed {
				retry := d.RetryAfterSeconds()
				metrics.RateLimitedTotal.WithLabelValues(cfg.Endpoint).Inc()
				c.Response().Header().Set("Retry-After", strconv.Itoa(retry))
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"success":    false,
					"error":      cfg.Message,
					"retryAfter": retry,
				})
			}
			return next(c)
		}
	}
}
