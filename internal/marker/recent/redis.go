package recent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"passage/pkg/marker"
)

// Redis keeps the log in a Redis list so several instances share one window.
// Entries are stored as JSON.
type Redis[T any] struct {
	client   *redis.Client
	key      string
	capacity int
}

// RedisOption configures a Redis log.
type RedisOption func(*redisConfig)

type redisConfig struct {
	capacity int
}

func WithCapacity(n int) RedisOption {
	return func(c *redisConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// NewRedis builds a log stored under key. The client lifecycle is managed by
// the caller.
func NewRedis[T any](client *redis.Client, key string, opts ...RedisOption) *Redis[T] {
	cfg := redisConfig{capacity: DefaultCapacity}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Redis[T]{client: client, key: key, capacity: cfg.capacity}
}

// Append pushes v and trims the list to capacity in one round trip.
func (r *Redis[T]) Append(ctx context.Context, v T) error {
	data, err := marker.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.key, data)
	pipe.LTrim(ctx, r.key, int64(-r.capacity), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

func (r *Redis[T]) List(ctx context.Context) ([]T, error) {
	raw, err := r.client.LRange(ctx, r.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, fmt.Errorf("decode log entry: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *Redis[T]) Len(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("read log length: %w", err)
	}
	return int(n), nil
}

func (r *Redis[T]) Clear(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
