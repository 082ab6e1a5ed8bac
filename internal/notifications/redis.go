package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on a per-post Redis channel.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher creates a RedisPublisher. A nil client yields a no-op publisher.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// PostChannel is the channel carrying events for postID.
func PostChannel(postID string) string {
	return fmt.Sprintf("comments:post:%s", postID)
}

func (p *RedisPublisher) Name() string { return "redis" }

// Publish sends the JSON-encoded event to the post's channel.
func (p *RedisPublisher) Publish(ctx context.Context, evt Event) error {
	if p.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, PostChannel(evt.PostID), payload).Err()
}

// SubscribePost streams raw event payloads for postID until ctx ends. The
// subscription is confirmed before SubscribePost returns.
func (p *RedisPublisher) SubscribePost(ctx context.Context, postID string) (<-chan string, error) {
	if p.rdb == nil {
		return nil, errors.New("redis is not configured")
	}
	sub := p.rdb.Subscribe(ctx, PostChannel(postID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", PostChannel(postID), err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
