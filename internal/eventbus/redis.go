package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/forgeline/healer/internal/model"
)

// RedisRelay republishes every event a Broadcaster fans out to a Redis
// pub/sub channel, so a second process can subscribe without sharing
// memory with the orchestrator.
type RedisRelay struct {
	client  *redis.Client
	channel string
}

func channelName(runID string) string { return "healer:events:" + runID }

// NewRedisRelay wraps an existing redis client for one run's channel.
func NewRedisRelay(client *redis.Client, runID string) *RedisRelay {
	return &RedisRelay{client: client, channel: channelName(runID)}
}

// Publish forwards ev to the run's Redis channel. Errors are returned,
// not swallowed — callers decide whether a relay failure should affect
// the run (the in-process Broadcaster always succeeds regardless).
func (r *RedisRelay) Publish(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event for redis relay: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Subscribe returns a channel of events observed on runID's Redis
// channel, for a reader with no access to the in-process Broadcaster.
func Subscribe(ctx context.Context, client *redis.Client, runID string) (<-chan model.Event, func(), error) {
	sub := client.Subscribe(ctx, channelName(runID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe to redis channel: %w", err)
	}

	out := make(chan model.Event, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }, nil
}
