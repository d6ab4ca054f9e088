package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sonetyo/ledger/internal/domain/ledger"
)

// Redis defaults.
const (
	DefaultRedisChannel = "sonetyo:events"
	DefaultRecentKey    = "sonetyo:events:recent"
	DefaultRecentSize   = 100
)

// NewRedisClient connects to the server at url and checks it answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisPublisher broadcasts events on a pub/sub channel and keeps a capped
// list of the most recent ones.
type RedisPublisher struct {
	client     redis.Cmdable
	channel    string
	recentKey  string
	recentSize int64
}

// NewRedisPublisher creates a publisher on channel.
func NewRedisPublisher(client redis.Cmdable, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisPublisher{
		client:     client,
		channel:    channel,
		recentKey:  DefaultRecentKey,
		recentSize: DefaultRecentSize,
	}
}

func (p *RedisPublisher) Name() string {
	return "redis"
}

// HandleEvent publishes ev and records it in the recent list.
func (p *RedisPublisher) HandleEvent(ctx context.Context, ev ledger.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, p.channel, payload)
		pipe.LPush(ctx, p.recentKey, payload)
		pipe.LTrim(ctx, p.recentKey, 0, p.recentSize-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Recent returns up to limit of the latest events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, limit int64) ([]ledger.Event, error) {
	if limit <= 0 || limit > p.recentSize {
		limit = p.recentSize
	}
	raw, err := p.client.LRange(ctx, p.recentKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis recent: %w", err)
	}
	out := make([]ledger.Event, 0, len(raw))
	for _, r := range raw {
		var ev ledger.Event
		if err := json.Unmarshal([]byte(r), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
