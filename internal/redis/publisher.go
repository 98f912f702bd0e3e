package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Publisher fans upload event envelopes out on the per-film channels, so
// every API instance sees progress produced by any of them.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}
