package middleware

import (
	"context"

	"github.com/duette-app/duette/common/logger"
	"github.com/labstack/echo/v4"
)

// RequestContext copies the echo request id into the request context so
// logger.WithContext picks it up. Must run after echo's RequestID middleware.
func RequestContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(context.WithValue(req.Context(), logger.RequestIDKey, id)))
			}
			return next(c)
		}
	}
}
