package ratelimit

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed scripts/sliding_log.lua
var slidingLogSource string

var slidingLogScript = redis.NewScript(slidingLogSource)

// SlidingLog keeps a per-client log of request instants and admits a request
// when fewer than Capacity of them fall inside the trailing window.
//
// A counter short-circuits the log while tokens remain; the log is only
// consulted, and rewritten, once the counter is exhausted.
type SlidingLog struct {
	store  Store
	config Config
	now    Clock
}

// NewSlidingLog creates the sliding window log strategy.
func NewSlidingLog(store Store, config Config, opts ...Option) *SlidingLog {
	o := buildOptions(opts)

	return &SlidingLog{
		store:  store,
		config: config,
		now:    o.clock,
	}
}

func slidingLogKeys(key ClientKey) []string {
	return []string{
		string(key) + "_remainingTokens__v2",
		string(key) + "_timestamps__v2",
	}
}

func (s *SlidingLog) Admit(ctx context.Context, key ClientKey) (Verdict, error) {
	now := s.now()

	reply, err := s.store.RunScript(ctx, slidingLogScript, slidingLogKeys(key),
		now.UnixMilli(),
		s.config.Capacity,
		s.config.Window.Milliseconds(),
		s.config.stateTTL().Milliseconds(),
	)
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	if len(reply) != 3 {
		return Verdict{}, fmt.Errorf("sliding log: unexpected reply %v", reply)
	}

	return Verdict{
		Allowed:   reply[0] == 1,
		Limit:     s.config.Capacity,
		Remaining: clampRemaining(reply[1]),
		ResetAt:   time.UnixMilli(reply[2]).Add(s.config.Window),
	}, nil
}

// Peek reports how many requests would currently be admitted.
func (s *SlidingLog) Peek(ctx context.Context, key ClientKey) (Verdict, error) {
	keys := slidingLogKeys(key)
	now := s.now()

	counter, found, err := s.store.GetInt(ctx, keys[0])
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	if !found {
		counter = s.config.Capacity
	}

	instants, err := s.store.RangeInts(ctx, keys[1], 0, s.config.Capacity)
	if err != nil {
		return Verdict{}, unavailable(err)
	}

	var inWindow int64

	oldest := now

	for _, ms := range instants {
		ts := time.UnixMilli(ms)
		if now.Sub(ts) < s.config.Window {
			inWindow++
			oldest = ts
		}
	}

	remaining := counter
	if remaining <= 0 {
		remaining = s.config.Capacity - inWindow
	}

	remaining = clampRemaining(remaining)

	return Verdict{
		Allowed:   remaining > 0,
		Limit:     s.config.Capacity,
		Remaining: remaining,
		ResetAt:   oldest.Add(s.config.Window),
	}, nil
}

var (
	_ Strategy = (*SlidingLog)(nil)
	_ Peeker   = (*SlidingLog)(nil)
)
