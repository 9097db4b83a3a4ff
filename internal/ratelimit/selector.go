package ratelimit

import "fmt"

// Version names a strategy as exposed through the "api" query parameter.
type Version string

const (
	VersionTokenBucket Version = "1"
	VersionSlidingLog  Version = "2"
	VersionFixedWindow Version = "3"

	// DefaultVersion is used whenever the parameter is absent or unrecognised.
	DefaultVersion = VersionSlidingLog
)

// Selector maps request parameters to strategies.
type Selector struct {
	strategies map[Version]Strategy
	fallback   Version
}

// NewSelector creates a selector. The fallback version must be registered.
func NewSelector(strategies map[Version]Strategy, fallback Version) (*Selector, error) {
	if _, ok := strategies[fallback]; !ok {
		return nil, fmt.Errorf("%w: fallback %q", ErrUnknownVersion, fallback)
	}

	return &Selector{
		strategies: strategies,
		fallback:   fallback,
	}, nil
}

// Resolve normalises a raw parameter value to a registered version.
func (s *Selector) Resolve(param string) Version {
	if _, ok := s.strategies[Version(param)]; ok {
		return Version(param)
	}

	return s.fallback
}

// Select returns the strategy for a raw parameter value, falling back to the
// default version.
func (s *Selector) Select(param string) (Version, Strategy) {
	v := s.Resolve(param)

	return v, s.strategies[v]
}

// Lookup returns the strategy registered for an exact version.
func (s *Selector) Lookup(v Version) (Strategy, error) {
	strategy, ok := s.strategies[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVersion, v)
	}

	return strategy, nil
}
