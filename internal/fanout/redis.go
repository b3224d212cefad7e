package fanout

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// channelPrefix namespaces Comanda event channels in a shared Redis.
const channelPrefix = "comanda:events:"

// RedisTransport publishes events to one Redis channel per group so a
// websocket gateway (or another server instance) can deliver them to its
// own connected observers.
type RedisTransport struct {
	client *redis.Client
}

// NewRedisTransport creates a transport publishing to the given Redis.
func NewRedisTransport(addr string) *RedisTransport {
	return &RedisTransport{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

// Deliver publishes the event as JSON. Publish failures are logged and
// dropped: delivery is at-most-once and observers reconcile on reconnect.
func (t *RedisTransport) Deliver(group Group, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("fanout: marshal event", "error", err)
		return
	}
	if err := t.client.Publish(context.Background(), channelPrefix+string(group), payload).Err(); err != nil {
		slog.Warn("fanout: redis publish failed", "group", group, "error", err)
	}
}

// Close releases the Redis connection.
func (t *RedisTransport) Close() error {
	return t.client.Close()
}
