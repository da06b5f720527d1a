package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel is the pub/sub channel notification frames travel on.
const RedisChannel = "bzf:notifications"

// RedisRelay publishes notification frames through Redis so every
// server instance delivers them to its own sockets.
type RedisRelay struct {
	client  *redis.Client
	hub     *Hub
	channel string
	log     *zap.SugaredLogger
}

// NewRedisRelay connects to the Redis server at url.
func NewRedisRelay(ctx context.Context, url string, hub *Hub, log *zap.SugaredLogger) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("notify: ping redis: %w", err)
	}
	return &RedisRelay{client: client, hub: hub, channel: RedisChannel, log: log}, nil
}

// Publish sends n's frame to every instance, including this one. When
// Redis is unreachable the frame reaches this instance's sockets only.
func (r *RedisRelay) Publish(ctx context.Context, n *Notification) error {
	frame, err := NotificationFrame(n)
	if err != nil {
		return fmt.Errorf("notify: encode frame: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, frame).Err(); err != nil {
		// Local sockets still get the frame.
		if r.hub != nil {
			r.hub.Deliver(n.UserID, frame)
		}
		return fmt.Errorf("notify: redis publish: %w", err)
	}
	return nil
}

// Run relays frames from Redis to local sockets until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("notify: redis subscribe: %w", err)
	}
	r.log.Infow("redis relay subscribed", "channel", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := frameRecipient([]byte(msg.Payload))
			if err != nil {
				r.log.Warnw("discarding relayed frame", "error", err)
				continue
			}
			r.hub.Deliver(userID, []byte(msg.Payload))
		}
	}
}

// Close releases the Redis connection.
func (r *RedisRelay) Close() error {
	return r.client.Close()
}

func frameRecipient(payload []byte) (int64, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return 0, err
	}
	if f.UserID <= 0 {
		return 0, fmt.Errorf("frame %q has no recipient", f.Type)
	}
	return f.UserID, nil
}
