package handlers

import (
	"context"

	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

type requestMetaKey struct{}

// RequestMeta holds per-request metadata resolved by middleware.
type RequestMeta struct {
	RequestID string
	ClientKey ratelimit.ClientKey
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
