package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisNotifier publishes messages as JSON on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a notifier publishing on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// SubscribeRedis streams the messages addressed to destination until ctx ends.
// The subscription is confirmed before SubscribeRedis returns.
func SubscribeRedis(ctx context.Context, client *redis.Client, channel, destination string, logger *slog.Logger) (<-chan Message, error) {
	ps := client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-in:
				if !ok {
					return
				}
				msg, ok := decode([]byte(raw.Payload), destination, logger)
				if !ok {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decode(payload []byte, destination string, logger *slog.Logger) (Message, bool) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		if logger != nil {
			logger.Warn("discarding undecodable notification", slog.Any("error", err))
		}
		return Message{}, false
	}
	if destination != "" && msg.Destination != destination {
		return Message{}, false
	}
	return msg, true
}
