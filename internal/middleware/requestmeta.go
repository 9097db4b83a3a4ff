package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttled-analytics/internal/handlers"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

// HeaderRequestID carries the request ID in both directions.
const HeaderRequestID = "X-Request-ID"

// IDGenerator returns a new unique request ID.
type IDGenerator func() string

// RequestMeta is a middleware that stores the request ID, client key, user-agent
// and referrer in the request context and echoes the request ID to the caller.
func RequestMeta(
	_ huma.API, identity *ratelimit.IdentityResolver, newID IDGenerator,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		id := ctx.Header(HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = newID()
		}

		meta := handlers.RequestMeta{
			RequestID: id,
			ClientKey: identity.Resolve(ctx),
			UserAgent: ctx.Header("User-Agent"),
			Referrer:  ctx.Header("Referer"),
		}

		ctx.SetHeader(HeaderRequestID, id)

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}
