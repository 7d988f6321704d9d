package router

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotifySink publishes formatted log lines to a Redis Pub/Sub channel as a
// real best-effort alert sink. Construction follows the usual Redis client
// setup: parse the URL, ping once, fail fast if the backend is unreachable
// at startup.
type NotifySink struct {
	client  *redis.Client
	channel string
}

// NewNotifySink connects to redisURL and returns a sink that publishes to
// channel.
func NewNotifySink(redisURL, channel string) (*NotifySink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid notify redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("notify redis connection failed: %w", err)
	}

	return &NotifySink{client: client, channel: channel}, nil
}

// Accept publishes line to the configured channel. Best-effort: a publish
// failure is returned to the caller (the router logs it once to stderr and
// moves on) rather than retried.
func (s *NotifySink) Accept(line string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Publish(ctx, s.channel, line).Err()
}

// Flush is a no-op: Redis Pub/Sub has no client-side buffer to drain.
func (s *NotifySink) Flush() error { return nil }

func (s *NotifySink) Close() error { return s.client.Close() }
