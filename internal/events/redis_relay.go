package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher is the subset of the redis client the relay needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisRelay forwards dispatched events to a Redis pub/sub channel so that
// other services can follow appointment changes.
type RedisRelay struct {
	client  Publisher
	channel string
}

// NewRedisRelay builds a relay. A nil client yields a relay that drops events.
func NewRedisRelay(client Publisher, channel string) *RedisRelay {
	return &RedisRelay{client: client, channel: channel}
}

// Register subscribes the relay to every appointment event.
func (r *RedisRelay) Register(d Dispatcher) {
	if d == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		d.Subscribe(eventType, r.Handle)
	}
}

// Handle publishes a single event as JSON.
func (r *RedisRelay) Handle(ctx context.Context, event Event) error {
	if r == nil || r.client == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}
