package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/throttled-analytics/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindow(t *testing.T) {
	t.Run("resets the whole window once it has expired", func(t *testing.T) {
		s, _ := newTestStore(t)
		clock := newFakeClock()
		limiter := ratelimit.NewFixedWindow(s, smallConfig(), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		for i, ms := range []int64{0, 1, 2} {
			clock.At(ms)

			v, err := limiter.Admit(ctx, testClient)

			require.NoError(t, err)
			assert.True(t, v.Allowed, "request at t=%d should be allowed", ms)
			assert.Equal(t, int64(2-i), v.Remaining)
		}

		clock.At(3)

		v, err := limiter.Admit(ctx, testClient)

		require.NoError(t, err)
		assert.False(t, v.Allowed)

		clock.At(1050)

		v, err = limiter.Admit(ctx, testClient)

		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, int64(2), v.Remaining)
		assert.Equal(t, epoch.Add(2050*time.Millisecond), v.ResetAt)
	})

	// The greedy window only notices its first request, so bursts on both
	// sides of a reset are admitted together.
	t.Run("admits a boundary burst above capacity within one trailing window", func(t *testing.T) {
		s, _ := newTestStore(t)
		clock := newFakeClock()
		limiter := ratelimit.NewFixedWindow(s, smallConfig(), ratelimit.WithClock(clock.Now))

		var admittedAt []int64

		for _, ms := range []int64{0, 990, 995, 1001, 1002, 1003} {
			clock.At(ms)

			v, err := limiter.Admit(context.Background(), testClient)
			require.NoError(t, err)

			if v.Allowed {
				admittedAt = append(admittedAt, ms)
			}
		}

		inTrailingWindow := 0

		for _, ms := range admittedAt {
			if ms > 1003-1000 {
				inTrailingWindow++
			}
		}

		assert.Len(t, admittedAt, 6)
		assert.Equal(t, 5, inTrailingWindow)
	})

	t.Run("keeps the window start of the first request", func(t *testing.T) {
		s, mr := newTestStore(t)
		clock := newFakeClock()
		limiter := ratelimit.NewFixedWindow(s, smallConfig(), ratelimit.WithClock(clock.Now))

		clock.At(10)
		_, _ = limiter.Admit(context.Background(), testClient)

		clock.At(500)
		v, err := limiter.Admit(context.Background(), testClient)

		require.NoError(t, err)
		assert.Equal(t, epoch.Add(1010*time.Millisecond), v.ResetAt)

		start, err := mr.Get("203.0.113.7_timestamp__v3")
		require.NoError(t, err)
		assert.Equal(t, "1700000000010", start)

		counter, err := mr.Get("203.0.113.7_remainingTokens__v3")
		require.NoError(t, err)
		assert.Equal(t, "1", counter)
		assert.Equal(t, 2*time.Second, mr.TTL("203.0.113.7_timestamp__v3"))
	})

	t.Run("never admits more than capacity in a burst", func(t *testing.T) {
		s, _ := newTestStore(t)
		cfg := ratelimit.Config{Capacity: 15, Window: time.Minute}
		limiter := ratelimit.NewFixedWindow(s, cfg)

		admitted := 0

		for range 30 {
			v, err := limiter.Admit(context.Background(), testClient)
			require.NoError(t, err)

			if !v.Allowed {
				break
			}

			admitted++
		}

		assert.Equal(t, 15, admitted)
	})

	t.Run("concurrent requests cannot exceed capacity", func(t *testing.T) {
		s, _ := newTestStore(t)
		cfg := ratelimit.Config{Capacity: 10, Window: time.Minute}
		limiter := ratelimit.NewFixedWindow(s, cfg)

		var (
			admitted atomic.Int64
			wg       sync.WaitGroup
		)

		for range 40 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				v, err := limiter.Admit(context.Background(), testClient)
				if err == nil && v.Allowed {
					admitted.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int64(10), admitted.Load())
	})

	t.Run("wraps store failures", func(t *testing.T) {
		limiter := ratelimit.NewFixedWindow(failingStore{}, smallConfig())

		_, err := limiter.Admit(context.Background(), testClient)

		assert.ErrorIs(t, err, ratelimit.ErrStoreUnavailable)
	})
}

func TestFixedWindow_Peek(t *testing.T) {
	t.Run("reports full capacity for a new client", func(t *testing.T) {
		s, _ := newTestStore(t)
		clock := newFakeClock()
		limiter := ratelimit.NewFixedWindow(s, smallConfig(), ratelimit.WithClock(clock.Now))

		v, err := limiter.Peek(context.Background(), testClient)

		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, int64(3), v.Remaining)
		assert.Equal(t, epoch.Add(time.Second), v.ResetAt)
	})

	t.Run("reports an exhausted window until it expires", func(t *testing.T) {
		s, _ := newTestStore(t)
		clock := newFakeClock()
		limiter := ratelimit.NewFixedWindow(s, smallConfig(), ratelimit.WithClock(clock.Now))
		ctx := context.Background()

		for range 3 {
			_, _ = limiter.Admit(ctx, testClient)
		}

		clock.At(500)

		v, err := limiter.Peek(ctx, testClient)
		require.NoError(t, err)
		assert.False(t, v.Allowed)
		assert.Equal(t, int64(0), v.Remaining)

		clock.At(1001)

		v, err = limiter.Peek(ctx, testClient)
		require.NoError(t, err)
		assert.True(t, v.Allowed)
		assert.Equal(t, int64(3), v.Remaining)
	})
}
