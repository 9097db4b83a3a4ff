package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttled-analytics/internal/analytics"
	"go.uber.org/zap"
)

// RedisCacheRepository wraps a Repository with read-through Redis caching.
// Reports are cached per date range for ttl; cache failures fall through to
// the wrapped store.
type RedisCacheRepository struct {
	store  analytics.Repository
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store analytics.Repository, client *redis.Client, ttl time.Duration, logger *zap.Logger,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:  store,
		client: client,
		prefix: "report:",
		ttl:    ttl,
		logger: logger,
	}
}

func (r *RedisCacheRepository) HourlyEvents(
	ctx context.Context, dr analytics.DateRange,
) ([]analytics.HourlyEvents, error) {
	return cached(ctx, r, "events:hourly:"+dr.Key(), func() ([]analytics.HourlyEvents, error) {
		return r.store.HourlyEvents(ctx, dr)
	})
}

func (r *RedisCacheRepository) DailyEvents(
	ctx context.Context, dr analytics.DateRange,
) ([]analytics.DailyEvents, error) {
	return cached(ctx, r, "events:daily:"+dr.Key(), func() ([]analytics.DailyEvents, error) {
		return r.store.DailyEvents(ctx, dr)
	})
}

func (r *RedisCacheRepository) HourlyStats(
	ctx context.Context, dr analytics.DateRange,
) ([]analytics.HourlyStats, error) {
	return cached(ctx, r, "stats:hourly:"+dr.Key(), func() ([]analytics.HourlyStats, error) {
		return r.store.HourlyStats(ctx, dr)
	})
}

func (r *RedisCacheRepository) DailyStats(
	ctx context.Context, dr analytics.DateRange,
) ([]analytics.DailyStats, error) {
	return cached(ctx, r, "stats:daily:"+dr.Key(), func() ([]analytics.DailyStats, error) {
		return r.store.DailyStats(ctx, dr)
	})
}

func (r *RedisCacheRepository) POIs(ctx context.Context) ([]analytics.POI, error) {
	return cached(ctx, r, "poi", func() ([]analytics.POI, error) {
		return r.store.POIs(ctx)
	})
}

// Shutdown is a no-op for RedisCacheRepository (client managed externally).
func (r *RedisCacheRepository) Shutdown() error {
	return nil
}

func cached[T any](
	ctx context.Context, r *RedisCacheRepository, name string, load func() ([]T, error),
) ([]T, error) {
	key := r.prefix + name

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var rows []T
		if err := json.Unmarshal(raw, &rows); err == nil {
			return rows, nil
		}
	}

	rows, err := load()
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return rows, nil
	}

	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}

	return rows, nil
}

// Compile-time check.
var _ analytics.Repository = (*RedisCacheRepository)(nil)
