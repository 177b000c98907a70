package routes

import (
	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterEventRoutes registers the websocket event stream and health check
func RegisterEventRoutes(e *echo.Echo, c *container.Container) {
	events := handlers.NewEventsHandler(c)
	health := handlers.NewHealthHandler(c)

	e.GET("/api/events", events.Subscribe)
	e.GET("/health", health.Health)
}
