package ratelimit

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Store is the shared counter store the strategies keep their state in.
type Store interface {
	// RunScript executes a server-side script atomically and returns its
	// integer array reply.
	RunScript(ctx context.Context, script *redis.Script, keys []string, args ...any) ([]int64, error)

	// GetInt reads an integer value. found is false when the key is absent.
	GetInt(ctx context.Context, key string) (value int64, found bool, err error)

	// RangeInts reads an inclusive range of an integer list.
	RangeInts(ctx context.Context, key string, start, stop int64) ([]int64, error)
}
