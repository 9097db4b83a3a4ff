// Package audit carries throttling decisions to the audit stream.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

// TopicThrottled is the stream every denied request is published to.
const TopicThrottled = "ratelimit.throttled"

// ThrottleEvent describes one request that was refused with 429.
type ThrottleEvent struct {
	ID         string    `json:"id"`
	ClientKey  string    `json:"clientKey"`
	Strategy   string    `json:"strategy"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RequestID  string    `json:"requestId,omitempty"`
	Limit      int64     `json:"limit"`
	ResetAt    time.Time `json:"resetAt"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewThrottleEvent builds an event for a denied verdict.
func NewThrottleEvent(
	key ratelimit.ClientKey,
	version ratelimit.Version,
	method, path, requestID string,
	verdict ratelimit.Verdict,
	now time.Time,
) *ThrottleEvent {
	return &ThrottleEvent{
		ID:         uuid.NewString(),
		ClientKey:  string(key),
		Strategy:   string(version),
		Method:     method,
		Path:       path,
		RequestID:  requestID,
		Limit:      verdict.Limit,
		ResetAt:    verdict.ResetAt,
		OccurredAt: now,
	}
}

// Sink receives throttle events taken off the stream.
type Sink interface {
	Record(ctx context.Context, event *ThrottleEvent) error
}
