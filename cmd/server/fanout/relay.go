package fanout

import (
	"context"
	"errors"

	"github.com/duette-app/duette/common/logger"
	"github.com/duette-app/duette/common/redis"
)

// Relay forwards a Redis pub/sub channel into the hub, so every server
// replica delivers events published by any of them
type Relay struct {
	redis   *redis.Client
	hub     *Hub
	channel string
	log     *logger.Logger
}

// NewRelay creates a relay for channel
func NewRelay(redisClient *redis.Client, hub *Hub, channel string, log *logger.Logger) *Relay {
	return &Relay{
		redis:   redisClient,
		hub:     hub,
		channel: channel,
		log:     log,
	}
}

// Start blocks until ctx is done or the subscription fails
func (r *Relay) Start(ctx context.Context) error {
	r.log.Info("event relay started", "channel", r.channel)

	err := r.redis.Subscribe(ctx, r.channel, func(payload []byte) {
		r.hub.Broadcast(payload)
	})
	if errors.Is(err, context.Canceled) {
		r.log.Info("event relay stopping")
		return nil
	}
	return err
}
