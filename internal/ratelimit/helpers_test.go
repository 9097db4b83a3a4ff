package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
	"github.com/serroba/throttled-analytics/internal/store"
)

const testClient ratelimit.ClientKey = "203.0.113.7"

var errStoreDown = errors.New("connection refused")

// epoch is an arbitrary fixed instant the fake clock offsets from.
var epoch = time.UnixMilli(1_700_000_000_000)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// At moves the clock to epoch + ms milliseconds.
func (c *fakeClock) At(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = epoch.Add(time.Duration(ms) * time.Millisecond)
}

func newTestStore(t *testing.T) (*store.RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return store.NewRedisCounterStore(client), mr
}

func smallConfig() ratelimit.Config {
	return ratelimit.Config{Capacity: 3, Window: time.Second}
}

// failingStore fails every call, standing in for an unreachable Redis.
type failingStore struct{}

func (failingStore) RunScript(_ context.Context, _ *redis.Script, _ []string, _ ...any) ([]int64, error) {
	return nil, errStoreDown
}

func (failingStore) GetInt(_ context.Context, _ string) (int64, bool, error) {
	return 0, false, errStoreDown
}

func (failingStore) RangeInts(_ context.Context, _ string, _, _ int64) ([]int64, error) {
	return nil, errStoreDown
}
