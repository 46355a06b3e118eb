package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the sorted set to the window, then adds the request
// when there is room. Returns {allowed, count, oldest score in ms}.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, member)
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local first = now
if oldest[2] then
  first = tonumber(oldest[2])
end
return {allowed, count, first}
`)

// RedisStore shares windows across server replicas.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, clock: time.Now}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := s.clock()
	vals, err := slidingWindow.Run(ctx, s.client, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 3 {
		return nil, fmt.Errorf("rate limit %s: unexpected reply of %d values", key, len(vals))
	}

	reset := time.UnixMilli(vals[2]).Add(window)
	res := &Result{
		Allowed:   vals[0] == 1,
		Limit:     limit,
		Remaining: max(limit-int(vals[1]), 0),
		ResetAt:   reset,
	}
	if !res.Allowed {
		res.RetryAfter = reset.Sub(now)
	}
	return res, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
