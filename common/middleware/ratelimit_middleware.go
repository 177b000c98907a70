package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/duette-app/duette/common/ratelimit"
	"github.com/labstack/echo/v4"
)

// InternalServiceHeader lets trusted callers such as the janitor skip rate limits
const InternalServiceHeader = "X-Internal-Service"

// isInternalRequest reports whether the caller presented the shared secret
func isInternalRequest(c echo.Context, secret string) bool {
	if secret == "" {
		return false
	}
	got := c.Request().Header.Get(InternalServiceHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1
}

// GlobalRateLimitMiddleware applies the service-wide request limit
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				// fail open
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window_seconds":      ratelimit.WindowSeconds,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// UserRateLimitMiddleware applies per-user limits. Needs "username" set on the
// echo context; anonymous requests only count against the global limit.
func UserRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, internalSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c, internalSecret) {
				return next(c)
			}

			username, ok := c.Get("username").(string)
			if !ok || username == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckUserLimit(c.Request().Context(), username, limit)
			if err != nil {
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "user_rate_limit_exceeded",
					"message": "You have exceeded your request quota. Please wait before trying again.",
					"details": map[string]interface{}{
						"username":            username,
						"limit":               result.Limit,
						"window_seconds":      ratelimit.WindowSeconds,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
