package handlers

import (
	"net/http"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/common/bootstrap"
	"github.com/labstack/echo/v4"
)

// HealthHandler reports service and dependency health
type HealthHandler struct {
	components *bootstrap.Components
	container  *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(c *container.Container) *HealthHandler {
	return &HealthHandler{components: c.Components, container: c}
}

// Health checks the database and Redis when configured
// GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	if err := h.components.Health(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"service": h.components.Config.Service.Name,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     h.components.Config.Service.Name,
		"subscribers": h.container.Hub.ConnectionCount(),
	})
}
