package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wms/shopsync/internal/infrastructure/shopify"
)

// incrementWindow bumps the counter and arms its expiry on the first hit of a
// window. A counter that lost its TTL is re-armed so it cannot pin the shop
// at an exhausted budget forever.
// KEYS[1] counter key, ARGV[1] window in ms. Returns {count, pttl}.
var incrementWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisCallBudgetStore keeps per-shop call counters in Redis so every
// replica draws from one budget
type RedisCallBudgetStore struct {
	client redis.Scripter
}

// NewRedisCallBudgetStore creates a budget store on a shared client
func NewRedisCallBudgetStore(client redis.Scripter) *RedisCallBudgetStore {
	return &RedisCallBudgetStore{client: client}
}

// Increment counts one call against key and returns the count in the
// current window and the time until the window resets
func (s *RedisCallBudgetStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrementWindow.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("call budget increment %s: %w", key, err)
	}
	if len(res) != 2 {
		return 0, 0, errors.New("call budget increment: unexpected script result")
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// Ensure RedisCallBudgetStore implements CallBudgetStore
var _ shopify.CallBudgetStore = (*RedisCallBudgetStore)(nil)
