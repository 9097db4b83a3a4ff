// Package ratelimit throttles callers per client identity using state kept in
// a shared Redis store. Three strategies are available and are selected per
// request through Selector.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultCapacity is the maximum number of requests admitted per window.
	DefaultCapacity int64 = 15
	// DefaultWindow is the length of the throttling window.
	DefaultWindow = 60 * time.Second
)

var (
	// ErrStoreUnavailable wraps any failure talking to the shared store.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
	// ErrUnknownVersion is returned by Selector.Lookup for unregistered versions.
	ErrUnknownVersion = errors.New("unknown rate limit version")
)

// ClientKey identifies a caller. It is derived from the network origin and is
// not verified in any way.
type ClientKey string

// Config is shared by every strategy and must not change after startup.
type Config struct {
	Capacity int64
	Window   time.Duration
	// StateTTL bounds how long per-client state survives without writes.
	// Zero means twice the window.
	StateTTL time.Duration
}

// DefaultConfig returns the compiled-in limits.
func DefaultConfig() Config {
	return Config{
		Capacity: DefaultCapacity,
		Window:   DefaultWindow,
	}
}

func (c Config) stateTTL() time.Duration {
	if c.StateTTL > 0 {
		return c.StateTTL
	}

	return 2 * c.Window
}

// Verdict is the outcome of a single admission decision.
type Verdict struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	// ResetAt is the instant at which capacity is expected to free up.
	// Zero when unknown.
	ResetAt time.Time
}

// Strategy decides whether a request from the given client is admitted.
type Strategy interface {
	Admit(ctx context.Context, key ClientKey) (Verdict, error)
}

// Peeker reports the current quota of a client without consuming it.
type Peeker interface {
	Peek(ctx context.Context, key ClientKey) (Verdict, error)
}

// Clock returns the current instant.
type Clock func() time.Time

// Option customises a strategy.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the wall clock, mostly for tests.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func clampRemaining(n int64) int64 {
	if n < 0 {
		return 0
	}

	return n
}
