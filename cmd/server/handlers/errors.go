package handlers

import (
	"errors"
	"net/http"

	"github.com/duette-app/duette/cmd/server/service"
	"github.com/duette-app/duette/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// catalogError maps service errors to status codes
func catalogError(c echo.Context, log *logger.Logger, err error) error {
	switch {
	case service.IsNotFound(err):
		return c.JSON(http.StatusNotFound, map[string]interface{}{"error": "not found"})
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidFilter),
		errors.Is(err, service.ErrInvalidPatch):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"error": err.Error()})
	default:
		log.WithContext(c.Request().Context()).Error("catalog request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"error": "internal error"})
	}
}

// uuidParam parses a path parameter, answering 400 when malformed
func uuidParam(c echo.Context, name string) (uuid.UUID, bool, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, false, c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": name + " must be a uuid",
		})
	}
	return id, true, nil
}
