package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/ratelimit"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newEcho(t *testing.T, mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u := c.Request().Header.Get("X-User-ID"); u != "" {
				c.Set("username", u)
			}
			return next(c)
		}
	})
	e.Use(mw...)
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func newLimiter(t *testing.T) *ratelimit.RateLimiter {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return ratelimit.NewRateLimiter(client, logger.Discard())
}

func do(e *echo.Echo, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestUserRateLimit(t *testing.T) {
	e := newEcho(t, UserRateLimitMiddleware(newLimiter(t), 1, "s3cret"))
	alice := map[string]string{"X-User-ID": "alice"}

	assert.Equal(t, http.StatusOK, do(e, alice).Code)

	rec := do(e, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "user_rate_limit_exceeded")

	// anonymous requests are not counted per user
	assert.Equal(t, http.StatusOK, do(e, nil).Code)

	// internal callers bypass
	assert.Equal(t, http.StatusOK, do(e, map[string]string{"X-User-ID": "alice", InternalServiceHeader: "s3cret"}).Code)
}

func TestGlobalRateLimit(t *testing.T) {
	e := newEcho(t, GlobalRateLimitMiddleware(newLimiter(t), 2, ""))

	assert.Equal(t, http.StatusOK, do(e, nil).Code)
	assert.Equal(t, http.StatusOK, do(e, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(e, nil).Code)

	// empty secret never bypasses
	assert.Equal(t, http.StatusTooManyRequests, do(e, map[string]string{InternalServiceHeader: ""}).Code)
}
