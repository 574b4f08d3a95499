package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Sink = (*RedisSink)(nil)

// RedisSink stores artifacts as Redis values under "artifact:<name>" with
// an expiration.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink connects to Redis at addr and verifies the connection
// before returning the sink.
func NewRedisSink(addr string, ttl time.Duration) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,

		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{
		client: client,
		ttl:    ttl,
	}, nil
}

func (s *RedisSink) Save(ctx context.Context, name string, data []byte) (string, error) {
	key := "artifact:" + name
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("save artifact %s: %w", name, err)
	}
	return key, nil
}

// Close closes the Redis connection
func (s *RedisSink) Close() error {
	return s.client.Close()
}
