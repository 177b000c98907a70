package handlers

import (
	"net/http"

	"github.com/duette-app/duette/cmd/server/container"
	"github.com/duette-app/duette/cmd/server/fanout"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/telemetry"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// mobile clients send no Origin header
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler upgrades clients to the catalog event stream
type EventsHandler struct {
	hub       *fanout.Hub
	telemetry *telemetry.Telemetry
	log       *logger.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(c *container.Container) *EventsHandler {
	return &EventsHandler{
		hub:       c.Hub,
		telemetry: c.Components.Telemetry,
		log:       c.Components.Logger,
	}
}

// Subscribe upgrades to a websocket that receives every catalog event
// GET /api/events
func (h *EventsHandler) Subscribe(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.log.WithContext(c.Request().Context()).Warn("websocket upgrade failed", "error", err)
		return nil
	}

	fanout.NewClient(h.hub, conn).Serve()
	h.log.Debug("event subscriber connected", "remote", c.RealIP())
	h.telemetry.RecordEvent("events.subscribed", map[string]any{"remote": c.RealIP()})
	return nil
}
