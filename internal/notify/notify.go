package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event describes a committed BLOCKED decision.
type Event struct {
	SenderID string    `json:"sender_id"`
	Channel  *string   `json:"channel"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// Publisher delivers blocked-sender events to operators.
// Delivery is best-effort; callers log failures and move on.
type Publisher interface {
	PublishBlocked(ctx context.Context, e Event) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishBlocked(context.Context, Event) error { return nil }

// redisPublisher is the subset of *redis.Client used here.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client  redisPublisher
	channel string
}

const DefaultChannel = "waasp:blocked"

func NewRedisPublisher(client redisPublisher, channel string) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("notify: redis client is nil")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) PublishBlocked(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, b).Err()
}
