package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/fixed_window.lua
var fixedWindowSource string

var fixedWindowScript = redis.NewScript(fixedWindowSource)

// FixedWindow spends Capacity tokens from a window that starts with the first
// admitted request and refills them all at once after Window has elapsed.
//
// The window only resets once it is exhausted, so a burst at the end of one
// window followed by a burst at the start of the next can admit up to twice
// Capacity within a single trailing Window. This is accepted behaviour.
type FixedWindow struct {
	store  Store
	config Config
	now    Clock
}

// NewFixedWindow creates the greedy fixed window strategy.
func NewFixedWindow(store Store, config Config, opts ...Option) *FixedWindow {
	o := buildOptions(opts)

	return &FixedWindow{
		store:  store,
		config: config,
		now:    o.clock,
	}
}

func fixedWindowKeys(key ClientKey) []string {
	return []string{
		string(key) + "_remainingTokens__v3",
		string(key) + "_timestamp__v3",
	}
}

func (f *FixedWindow) Admit(ctx context.Context, key ClientKey) (Verdict, error) {
	reply, err := f.store.RunScript(ctx, fixedWindowScript, fixedWindowKeys(key),
		f.now().UnixMilli(),
		f.config.Capacity,
		f.config.Window.Milliseconds(),
		f.config.stateTTL().Milliseconds(),
	)
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	if len(reply) != 3 {
		return Verdict{}, fmt.Errorf("fixed window: unexpected reply %v", reply)
	}

	return Verdict{
		Allowed:   reply[0] == 1,
		Limit:     f.config.Capacity,
		Remaining: clampRemaining(reply[1]),
		ResetAt:   time.UnixMilli(reply[2]).Add(f.config.Window),
	}, nil
}

// Peek reports how many requests would currently be admitted.
func (f *FixedWindow) Peek(ctx context.Context, key ClientKey) (Verdict, error) {
	keys := fixedWindowKeys(key)
	now := f.now()

	remaining, found, err := f.store.GetInt(ctx, keys[0])
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	if !found {
		remaining = f.config.Capacity
	}

	startMs, found, err := f.store.GetInt(ctx, keys[1])
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	// An absent start behaves like the epoch, exactly as in Admit.
	start := time.UnixMilli(startMs)
	if remaining <= 0 && now.Sub(start) > f.config.Window {
		remaining = f.config.Capacity
		start = now
	} else if !found {
		start = now
	}

	remaining = clampRemaining(remaining)

	return Verdict{
		Allowed:   remaining > 0,
		Limit:     f.config.Capacity,
		Remaining: remaining,
		ResetAt:   start.Add(f.config.Window),
	}, nil
}

var (
	_ Strategy = (*FixedWindow)(nil)
	_ Peeker   = (*FixedWindow)(nil)
)
