package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/queue"
)

// EventHandler reacts to catalog events
type EventHandler interface {
	Name() string
	Handle(ctx context.Context, event models.CatalogEvent) error
}

// Dispatcher is the single subscriber of the catalog topic. It hands each
// event to every handler in order.
type Dispatcher struct {
	handlers []EventHandler
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over handlers
func NewDispatcher(log *logger.Logger, handlers ...EventHandler) *Dispatcher {
	return &Dispatcher{handlers: handlers, log: log}
}

// Start subscribes to the catalog topic until ctx is done
func (d *Dispatcher) Start(ctx context.Context, q queue.Queue) error {
	return q.Subscribe(ctx, TopicCatalogEvents, d.HandleMessage)
}

// HandleMessage decodes one queue message and runs every handler. A failing
// handler does not stop the others.
func (d *Dispatcher) HandleMessage(ctx context.Context, key string, value []byte) error {
	var event models.CatalogEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("decode catalog event %s: %w", key, err)
	}

	var errs []error
	for _, h := range d.handlers {
		if err := h.Handle(ctx, event); err != nil {
			d.log.Warn("catalog event handler failed",
				"handler", h.Name(),
				"type", event.Type,
				"video_id", event.VideoID,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
	}
	return errors.Join(errs...)
}
