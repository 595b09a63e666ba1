// Package redisrelay fans registry events out across processes through a
// Redis pub/sub channel, so that a mutation served by one replica reaches
// subscribers connected to another.
package redisrelay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/pubsub"
)

// DefaultChannel is the Redis channel shared by every service.
const DefaultChannel = "threads:events"

// Relay implements pubsub.Relay on top of go-redis.
type Relay struct {
	client  *redis.Client
	channel string
	logger  *logging.Logger
}

// New connects to the Redis server at url (redis://host:port/db).
func New(ctx context.Context, url string, logger *logging.Logger) (*Relay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, DefaultChannel, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, channel string, logger *logging.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{client: client, channel: channel, logger: logger}
}

// Forward publishes ev on the shared channel.
func (r *Relay) Forward(ctx context.Context, ev pubsub.Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the shared channel and hands decoded events to deliver.
// Malformed messages are logged and skipped.
func (r *Relay) Run(ctx context.Context, deliver func(pubsub.Event)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis channel %s closed", r.channel)
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				r.logger.WithError(err).Warn("Dropping malformed relay message")
				continue
			}
			deliver(ev)
		}
	}
}

// Close closes the Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}

// Encode serialises an event for the wire.
func Encode(ev pubsub.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode relay event: %w", err)
	}
	return data, nil
}

// Decode parses a wire message. Events without a topic or origin are rejected.
func Decode(data []byte) (pubsub.Event, error) {
	var ev pubsub.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return pubsub.Event{}, fmt.Errorf("decode relay event: %w", err)
	}
	if ev.Topic == "" || ev.Origin == "" {
		return pubsub.Event{}, fmt.Errorf("decode relay event: missing topic or origin")
	}
	return ev, nil
}

var _ pubsub.Relay = (*Relay)(nil)
