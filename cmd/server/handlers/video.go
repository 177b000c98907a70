package handlers

import (
	"io"
	"net/http"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/cmd/server/service"
	"github.com/duette-app/duette/common/logger"
	"github.com/labstack/echo/v4"
)

// VideoHandler handles video catalog requests
type VideoHandler struct {
	catalog *service.CatalogService
	log     *logger.Logger
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(c *container.Container) *VideoHandler {
	return &VideoHandler{
		catalog: c.Catalog,
		log:     c.Components.Logger,
	}
}

// ListVideos lists videos newest first
// GET /api/video?val=<search>&filter=<cel>
func (h *VideoHandler) ListVideos(c echo.Context) error {
	videos, err := h.catalog.ListVideos(c.Request().Context(), c.QueryParam("val"), c.QueryParam("filter"))
	if err != nil {
		return catalogError(c, h.log, err)
	}
	if videos == nil {
		videos = []*models.Video{}
	}
	return c.JSON(http.StatusOK, videos)
}

// GetVideo retrieves a video by id
// GET /api/video/:id
func (h *VideoHandler) GetVideo(c echo.Context) error {
	id, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}

	video, err := h.catalog.GetVideo(c.Request().Context(), id)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, video)
}

// CreateVideo creates a new video
// POST /api/video
func (h *VideoHandler) CreateVideo(c echo.Context) error {
	var req models.CreateVideoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "invalid request body",
		})
	}

	video, err := h.catalog.CreateVideo(c.Request().Context(), &req)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, video)
}

// PatchVideo applies a JSON Patch to a video
// PATCH /api/video/:id
func (h *VideoHandler) PatchVideo(c echo.Context) error {
	id, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}

	patch, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "failed to read request body",
		})
	}

	video, err := h.catalog.PatchVideo(c.Request().Context(), id, patch)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, video)
}

// DeleteVideo deletes a video and its duette records
// DELETE /api/video/:id
func (h *VideoHandler) DeleteVideo(c echo.Context) error {
	id, ok, err := uuidParam(c, "id")
	if !ok {
		return err
	}

	duetteIDs, err := h.catalog.DeleteVideo(c.Request().Context(), id)
	if err != nil {
		return catalogError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":      id,
		"deleted": true,
		"duettes": len(duetteIDs),
	})
}
