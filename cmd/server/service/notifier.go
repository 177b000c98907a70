package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/redis"
)

// EventsChannel is the Redis channel catalog events are relayed on
const EventsChannel = "duette:events"

// Broadcaster pushes a payload to every connected event subscriber
type Broadcaster interface {
	Broadcast(data []byte)
}

// Notifier forwards catalog events to websocket clients. With Redis every
// replica's relay picks the event up; without it the local hub gets it directly.
type Notifier struct {
	redis *redis.Client
	hub   Broadcaster
	log   *logger.Logger
}

// NewNotifier creates a notifier, redisClient may be nil
func NewNotifier(redisClient *redis.Client, hub Broadcaster, log *logger.Logger) *Notifier {
	return &Notifier{redis: redisClient, hub: hub, log: log}
}

func (n *Notifier) Name() string { return "notifier" }

func (n *Notifier) Handle(ctx context.Context, event models.CatalogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if n.redis != nil {
		return n.redis.PublishEvent(ctx, EventsChannel, data)
	}

	n.hub.Broadcast(data)
	return nil
}
