package ratelimit

import (
	"context"

	"github.com/go-redis/redis_rate/v10"
)

// Bucket is the delegated bucket algorithm. *redis_rate.Limiter satisfies it.
type Bucket interface {
	AllowN(ctx context.Context, key string, limit redis_rate.Limit, n int) (*redis_rate.Result, error)
}

// TokenBucket hands the decision to a GCRA bucket stored in Redis. Capacity
// tokens refill evenly over Window.
type TokenBucket struct {
	bucket Bucket
	limit  redis_rate.Limit
	config Config
	now    Clock
}

// NewTokenBucket creates the delegated token bucket strategy.
func NewTokenBucket(bucket Bucket, config Config, opts ...Option) *TokenBucket {
	o := buildOptions(opts)

	return &TokenBucket{
		bucket: bucket,
		limit: redis_rate.Limit{
			Rate:   int(config.Capacity),
			Burst:  int(config.Capacity),
			Period: config.Window,
		},
		config: config,
		now:    o.clock,
	}
}

func tokenBucketKey(key ClientKey) string {
	return string(key) + "__v1"
}

func (t *TokenBucket) Admit(ctx context.Context, key ClientKey) (Verdict, error) {
	return t.take(ctx, key, 1)
}

// Peek asks the bucket for zero tokens, which reports without consuming.
func (t *TokenBucket) Peek(ctx context.Context, key ClientKey) (Verdict, error) {
	return t.take(ctx, key, 0)
}

func (t *TokenBucket) take(ctx context.Context, key ClientKey, n int) (Verdict, error) {
	res, err := t.bucket.AllowN(ctx, tokenBucketKey(key), t.limit, n)
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	allowed := res.Allowed > 0
	if n == 0 {
		allowed = res.Remaining > 0
	}

	return Verdict{
		Allowed:   allowed,
		Limit:     t.config.Capacity,
		Remaining: clampRemaining(int64(res.Remaining)),
		ResetAt:   t.now().Add(res.ResetAfter),
	}, nil
}

var (
	_ Strategy = (*TokenBucket)(nil)
	_ Peeker   = (*TokenBucket)(nil)
)
