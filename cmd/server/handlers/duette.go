package handlers

import (
	"net/http"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/cmd/server/service"
	"github.com/duette-app/duette/common/logger"
	"github.com/labstack/echo/v4"
)

// DuetteHandler handles the takes recorded against a video
type DuetteHandler struct {
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewDuetteHandler creates a new duette handler
func NewDuetteHandler(c *container.Container) *DuetteHandler {
	return &DuetteHandler{
		catalog: c.Catalog,
		log:     c.Components.Logger,
	}
}

// CreateDuette registers a new take
// POST /api/video/:id/duettes
func (h *DuetteHandler) CreateDuette(c echo.Context) error {
	videoID, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}

	duette, err := h.catalog.CreateDuette(c.Request().Context(), videoID)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, duette)
}

// ListDuettes lists the takes of a video
// GET /api/video/:id/duettes
func (h *DuetteHandler) ListDuettes(c echo.Context) error {
	videoID, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}

	duettes, err := h.catalog.ListDuettes(c.Request().Context(), videoID)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	if duettes == nil {
		duettes = []*models.Duette{}
	}
	return c.JSON(http.StatusOK, duettes)
}

// DeleteDuette removes a take record, the janitor removes its object
// DELETE /api/video/:id/duettes/:duetteId
func (h *DuetteHandler) DeleteDuette(c echo.Context) error {
	videoID, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}
	duetteID, ok, err := uuidParam(c, "duetteId")
	if !ok {
		return err
	}

	if err := h.catalog.DeleteDuette(c.Request().Context(), videoID, duetteID); err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":      duetteID,
		"deleted": true,
	})
}
