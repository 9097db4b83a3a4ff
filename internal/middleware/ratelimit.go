package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttled-analytics/internal/audit"
	"github.com/serroba/throttled-analytics/internal/handlers"
	"github.com/serroba/throttled-analytics/internal/messaging"
	"github.com/serroba/throttled-analytics/internal/metrics"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
	"go.uber.org/zap"
)

// Response headers set on admitted requests.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// ThrottledMessage is returned verbatim to every denied caller, whatever the
// configured capacity.
const ThrottledMessage = "You may only request 3 times per minute."

var throttledBody = []byte(`{"message":"` + ThrottledMessage + `"}`)

// DecisionRecorder receives one observation per gate decision.
type DecisionRecorder interface {
	ObserveDecision(strategy, outcome string, elapsed time.Duration)
	ObservePublish(err error)
}

// RateLimiterDeps are the collaborators of the RateLimiter middleware.
// Logger, Publish and Recorder may be nil.
type RateLimiterDeps struct {
	Selector *ratelimit.Selector
	Identity *ratelimit.IdentityResolver
	Logger   *zap.Logger
	Publish  messaging.Publish[audit.ThrottleEvent]
	Recorder DecisionRecorder
	Now      func() time.Time
}

// RateLimiter returns a Huma middleware that admits or rejects each request
// using the strategy picked by the "api" query parameter.
//
// Per-endpoint configuration can be provided via operation metadata using
// ratelimit.MetadataKey to disable limiting or pin a strategy version.
func RateLimiter(api huma.API, deps RateLimiterDeps) func(ctx huma.Context, next func(huma.Context)) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	if deps.Publish == nil {
		deps.Publish = messaging.Discard[audit.ThrottleEvent]()
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}

	return func(ctx huma.Context, next func(huma.Context)) {
		cfg := ratelimit.GetEndpointConfig(ctx)
		if cfg != nil && cfg.Disabled {
			next(ctx)

			return
		}

		version, strategy, err := selectStrategy(deps.Selector, cfg, ctx.Query("api"))
		if err != nil {
			deps.Logger.Error("misconfigured endpoint",
				zap.String("path", operationPath(ctx)), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "internal server error", err)

			return
		}

		key := clientKey(ctx, deps.Identity)
		started := time.Now()

		verdict, err := strategy.Admit(ctx.Context(), key)
		elapsed := time.Since(started)

		if err != nil {
			deps.observe(version, metrics.OutcomeError, elapsed)
			deps.Logger.Error("rate limit check failed",
				zap.String("path", operationPath(ctx)),
				zap.String("client", string(key)),
				zap.String("strategy", string(version)),
				zap.Error(err),
			)

			status := http.StatusInternalServerError
			if errors.Is(err, ratelimit.ErrStoreUnavailable) {
				status = http.StatusServiceUnavailable
			}

			_ = huma.WriteErr(api, ctx, status, http.StatusText(status))

			return
		}

		if !verdict.Allowed {
			deps.observe(version, metrics.OutcomeDenied, elapsed)
			deps.reject(ctx, key, version, verdict)

			return
		}

		deps.observe(version, metrics.OutcomeAllowed, elapsed)

		ctx.SetHeader(HeaderLimit, strconv.FormatInt(verdict.Limit, 10))
		ctx.SetHeader(HeaderRemaining, strconv.FormatInt(verdict.Remaining, 10))

		if !verdict.ResetAt.IsZero() {
			ctx.SetHeader(HeaderReset, strconv.FormatInt(verdict.ResetAt.Unix(), 10))
		}

		next(ctx)
	}
}

func selectStrategy(
	selector *ratelimit.Selector, cfg *ratelimit.EndpointConfig, param string,
) (ratelimit.Version, ratelimit.Strategy, error) {
	if cfg != nil && cfg.Version != "" {
		strategy, err := selector.Lookup(cfg.Version)

		return cfg.Version, strategy, err
	}

	version, strategy := selector.Select(param)

	return version, strategy, nil
}

// clientKey prefers the key RequestMeta already resolved.
func clientKey(ctx huma.Context, identity *ratelimit.IdentityResolver) ratelimit.ClientKey {
	if meta := handlers.RequestMetaFromContext(ctx.Context()); meta.ClientKey != "" {
		return meta.ClientKey
	}

	return identity.Resolve(ctx)
}

func (d RateLimiterDeps) observe(version ratelimit.Version, outcome string, elapsed time.Duration) {
	if d.Recorder != nil {
		d.Recorder.ObserveDecision(string(version), outcome, elapsed)
	}
}

func (d RateLimiterDeps) reject(
	ctx huma.Context, key ratelimit.ClientKey, version ratelimit.Version, verdict ratelimit.Verdict,
) {
	now := d.Now()
	path := operationPath(ctx)

	d.Logger.Info("request throttled",
		zap.String("path", path),
		zap.String("client", string(key)),
		zap.String("strategy", string(version)),
		zap.Time("reset_at", verdict.ResetAt),
	)

	meta := handlers.RequestMetaFromContext(ctx.Context())
	event := audit.NewThrottleEvent(key, version, ctx.Method(), path, meta.RequestID, verdict, now)

	err := d.Publish(ctx.Context(), event)
	if err != nil {
		d.Logger.Warn("failed to publish throttle event", zap.String("id", event.ID), zap.Error(err))
	}

	if d.Recorder != nil {
		d.Recorder.ObservePublish(err)
	}

	ctx.SetHeader("Content-Type", "application/json")

	if wait := verdict.ResetAt.Sub(now); !verdict.ResetAt.IsZero() && wait > 0 {
		ctx.SetHeader(HeaderRetryAfter, strconv.FormatInt(int64((wait+time.Second-1)/time.Second), 10))
	}

	ctx.SetStatus(http.StatusTooManyRequests)
	_, _ = ctx.BodyWriter().Write(throttledBody)
}

// operationPath extracts the path from the operation, if available.
func operationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ctx.URL().Path
}
