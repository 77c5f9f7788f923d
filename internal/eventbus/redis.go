package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	taskUpdateChannel = "workflow:task_updates"
	runUpdateChannel  = "workflow:run_updates"
)

// RedisBus publishes task.update/run.update events to Redis pub/sub
// channels, adapted from the reference's state.RedisPublisher.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a new Redis-backed event bus.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) PublishTaskUpdate(update TaskUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal task update: %w", err)
	}
	if err := b.client.Publish(ctx, taskUpdateChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish task update: %w", err)
	}
	return nil
}

func (b *RedisBus) PublishRunUpdate(update RunUpdate) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("failed to marshal run update: %w", err)
	}
	if err := b.client.Publish(ctx, runUpdateChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish run update: %w", err)
	}
	return nil
}

// SubscribeTaskUpdates subscribes to task.update events (operator tooling,
// e.g. the external live-update socket channel named out of scope in
// spec §1).
func (b *RedisBus) SubscribeTaskUpdates(ctx context.Context, handler func(TaskUpdate)) error {
	pubsub := b.client.Subscribe(ctx, taskUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var update TaskUpdate
			if err := json.Unmarshal([]byte(msg.Payload), &update); err != nil {
				continue
			}
			handler(update)
		}
	}
}
