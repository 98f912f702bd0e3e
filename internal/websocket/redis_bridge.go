package websocket

import (
	"context"

	"filmbox/internal/events"
)

// RedisBridge forwards upload events from Redis pub/sub into the hub so every
// API instance serves the same progress stream.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub}
}

func (b *RedisBridge) Run(ctx context.Context) error {
	return b.subscriber.Subscribe(ctx, []string{events.UploadChannelPattern}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
}
