package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttled-analytics/internal/analytics"
	"github.com/serroba/throttled-analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestRedisCounterStore(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	s := store.NewRedisCounterStore(client)

	t.Run("runs a script and returns integers", func(t *testing.T) {
		script := redis.NewScript(`
			redis.call("SET", KEYS[1], ARGV[1])
			return {tonumber(ARGV[1]), redis.call("INCR", KEYS[1])}
		`)

		values, err := s.RunScript(ctx, script, []string{"counter"}, 41)

		require.NoError(t, err)
		assert.Equal(t, []int64{41, 42}, values)
	})

	t.Run("GetInt reports absent keys", func(t *testing.T) {
		v, found, err := s.GetInt(ctx, "missing")

		require.NoError(t, err)
		assert.False(t, found)
		assert.Zero(t, v)
	})

	t.Run("GetInt parses present keys", func(t *testing.T) {
		require.NoError(t, mr.Set("present", "-3"))

		v, found, err := s.GetInt(ctx, "present")

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(-3), v)
	})

	t.Run("RangeInts parses list entries", func(t *testing.T) {
		_, err := mr.Push("log", "300", "200", "100")
		require.NoError(t, err)

		values, err := s.RangeInts(ctx, "log", 0, -1)

		require.NoError(t, err)
		assert.Equal(t, []int64{300, 200, 100}, values)
	})

	t.Run("RangeInts rejects non numeric entries", func(t *testing.T) {
		_, err := mr.Push("bad", "not-a-number")
		require.NoError(t, err)

		_, err = s.RangeInts(ctx, "bad", 0, -1)

		assert.Error(t, err)
	})

	t.Run("surfaces connection errors", func(t *testing.T) {
		broken := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		defer broken.Close()

		_, _, err := store.NewRedisCounterStore(broken).GetInt(ctx, "k")

		assert.Error(t, err)
	})
}

type countingRepository struct {
	*store.MemoryStore
	calls int
	err   error
}

func (c *countingRepository) HourlyEvents(
	ctx context.Context, r analytics.DateRange,
) ([]analytics.HourlyEvents, error) {
	c.calls++

	if c.err != nil {
		return nil, c.err
	}

	return c.MemoryStore.HourlyEvents(ctx, r)
}

func TestRedisCacheRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("serves repeated reads from the cache", func(t *testing.T) {
		mr, client := newMiniredis(t)
		inner := &countingRepository{MemoryStore: store.NewMemoryStore(fixture())}
		repo := store.NewRedisCacheRepository(inner, client, time.Minute, zap.NewNop())

		first, err := repo.HourlyEvents(ctx, analytics.DateRange{})
		require.NoError(t, err)

		second, err := repo.HourlyEvents(ctx, analytics.DateRange{})
		require.NoError(t, err)

		assert.Equal(t, 1, inner.calls)
		assert.Equal(t, first, second)
		assert.True(t, mr.Exists("report:events:hourly:all"))
		assert.Equal(t, time.Minute, mr.TTL("report:events:hourly:all"))
	})

	t.Run("caches each date range separately", func(t *testing.T) {
		_, client := newMiniredis(t)
		inner := &countingRepository{MemoryStore: store.NewMemoryStore(fixture())}
		repo := store.NewRedisCacheRepository(inner, client, time.Minute, zap.NewNop())

		r, _ := analytics.ParseDateRange("2017-01-02", "")

		all, _ := repo.HourlyEvents(ctx, analytics.DateRange{})
		one, _ := repo.HourlyEvents(ctx, r)

		assert.Equal(t, 2, inner.calls)
		assert.Len(t, all, 4)
		assert.Len(t, one, 1)
	})

	t.Run("reloads after expiry", func(t *testing.T) {
		mr, client := newMiniredis(t)
		inner := &countingRepository{MemoryStore: store.NewMemoryStore(fixture())}
		repo := store.NewRedisCacheRepository(inner, client, time.Minute, zap.NewNop())

		_, _ = repo.HourlyEvents(ctx, analytics.DateRange{})
		mr.FastForward(2 * time.Minute)
		_, _ = repo.HourlyEvents(ctx, analytics.DateRange{})

		assert.Equal(t, 2, inner.calls)
	})

	t.Run("does not cache errors", func(t *testing.T) {
		mr, client := newMiniredis(t)
		inner := &countingRepository{MemoryStore: store.NewMemoryStore(fixture()), err: errors.New("db down")}
		repo := store.NewRedisCacheRepository(inner, client, time.Minute, zap.NewNop())

		_, err := repo.HourlyEvents(ctx, analytics.DateRange{})

		require.Error(t, err)
		assert.False(t, mr.Exists("report:events:hourly:all"))
	})

	t.Run("falls through when redis is down", func(t *testing.T) {
		mr, client := newMiniredis(t)
		inner := &countingRepository{MemoryStore: store.NewMemoryStore(fixture())}
		repo := store.NewRedisCacheRepository(inner, client, time.Minute, zap.NewNop())

		mr.Close()

		rows, err := repo.HourlyEvents(ctx, analytics.DateRange{})

		require.NoError(t, err)
		assert.Len(t, rows, 4)
	})

	t.Run("passes the other reports through", func(t *testing.T) {
		_, client := newMiniredis(t)
		repo := store.NewRedisCacheRepository(store.NewMemoryStore(fixture()), client, time.Minute, zap.NewNop())

		pois, err := repo.POIs(ctx)
		require.NoError(t, err)
		assert.Len(t, pois, 2)

		stats, err := repo.DailyStats(ctx, analytics.DateRange{})
		require.NoError(t, err)
		assert.Len(t, stats, 2)

		daily, err := repo.DailyEvents(ctx, analytics.DateRange{})
		require.NoError(t, err)
		assert.Len(t, daily, 3)

		hourly, err := repo.HourlyStats(ctx, analytics.DateRange{})
		require.NoError(t, err)
		assert.Len(t, hourly, 3)
	})
}
