package routes

import (
	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterObjectRoutes registers the object proxy
func RegisterObjectRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewObjectHandler(c)

	objects := e.Group("/api/aws")
	{
		objects.POST("/", h.PostObject)         // POST /api/aws/ {Key, Body}
		objects.GET("/:Key", h.GetObject)       // GET /api/aws/{key}
		objects.PUT("/:Key", h.PutObject)       // PUT /api/aws/{key} raw body
		objects.DELETE("/:Key", h.DeleteObject) // DELETE /api/aws/{key}
	}
}
