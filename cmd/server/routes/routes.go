package routes

import (
	"github.com/duette-app/duette/cmd/server/container"
	"github.com/labstack/echo/v4"
)

// Register registers all application routes using the service container
func Register(e *echo.Echo, c *container.Container) {
	RegisterObjectRoutes(e, c)
	RegisterVideoRoutes(e, c)
	RegisterEventRoutes(e, c)
}
