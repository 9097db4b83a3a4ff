package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

// RedisCounterStore is a Redis implementation of ratelimit.Store.
// It shares one pooled client across all requests.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore creates a new Redis-backed counter store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (r *RedisCounterStore) RunScript(
	ctx context.Context, script *redis.Script, keys []string, args ...any,
) ([]int64, error) {
	// Run tries EVALSHA first and falls back to EVAL when the script is not cached.
	values, err := script.Run(ctx, r.client, keys, args...).Int64Slice()
	if err != nil {
		return nil, err
	}

	return values, nil
}

func (r *RedisCounterStore) GetInt(ctx context.Context, key string) (int64, bool, error) {
	value, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}

		return 0, false, err
	}

	return value, true, nil
}

func (r *RedisCounterStore) RangeInts(ctx context.Context, key string, start, stop int64) ([]int64, error) {
	raw, err := r.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}

	values := make([]int64, 0, len(raw))

	for _, s := range raw {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q in %s: %w", s, key, err)
		}

		values = append(values, v)
	}

	return values, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RedisCounterStore)(nil)
