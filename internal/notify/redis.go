package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events to Redis Pub/Sub channels so external
// notifier processes can subscribe without linking against the core.
// Publish failures are logged and swallowed: a down Redis must never fail
// the order or tip mutation that produced the event.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to addr and publishes under
// "<prefix>:orders" and "<prefix>:tips".
func NewRedisPublisher(addr, prefix string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
}

func (p *RedisPublisher) PublishOrderEvent(ctx context.Context, e OrderEvent) {
	p.publish(ctx, p.channel("orders"), e)
}

func (p *RedisPublisher) PublishTipEvent(ctx context.Context, e TipEvent) {
	p.publish(ctx, p.channel("tips"), e)
}

func (p *RedisPublisher) channel(stream string) string {
	return fmt.Sprintf("%s:%s", p.prefix, stream)
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, e any) {
	payload, err := json.Marshal(e)
	if err != nil {
		slog.ErrorContext(ctx, "notify: marshal event", "channel", channel, "error", err)
		return
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		slog.WarnContext(ctx, "notify: publish failed, event dropped", "channel", channel, "error", err)
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
