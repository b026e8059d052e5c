package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"office-service/internal/service"
)

// Dispatcher is the EventPublisher the services write into. With redis it
// publishes upstream and lets every instance's hub pick the event up through
// its room subscriptions. Without redis it short-circuits straight into the
// local hub, so a single-instance deployment works unchanged.
type Dispatcher struct {
	rdb    *redis.Client
	hub    *Hub
	logger *zap.Logger
}

func NewDispatcher(rdb *redis.Client, hub *Hub, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{rdb: rdb, hub: hub, logger: logger}
}

func (d *Dispatcher) Publish(ctx context.Context, channel string, event service.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if d.rdb != nil {
		if err := d.rdb.Publish(ctx, channel, payload).Err(); err != nil {
			d.logger.Error("failed to publish event",
				zap.String("channel", channel),
				zap.String("type", event.Type),
				zap.Error(err))
			return err
		}
		return nil
	}

	d.hub.DeliverLocal(channel, payload)
	return nil
}
