package health

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	redis    Checker
	postgres Checker
	timeout  time.Duration
}

// NewHandler creates a new health handler. Each dependency gets timeout to answer.
func NewHandler(redis, postgres Checker, timeout time.Duration) *Handler {
	return &Handler{redis: redis, postgres: postgres, timeout: timeout}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status   string `enum:"ok,degraded"         json:"status"`
		Redis    string `enum:"healthy,unhealthy"   json:"redis"`
		Postgres string `enum:"healthy,unhealthy"   json:"postgres"`
	}
}

// Check reports the state of Redis and PostgreSQL. Either failing marks the
// service as degraded; the endpoint itself always answers 200.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Redis = h.probe(ctx, h.redis)
	resp.Body.Postgres = h.probe(ctx, h.postgres)

	if resp.Body.Redis != "healthy" || resp.Body.Postgres != "healthy" {
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

func (h *Handler) probe(ctx context.Context, c Checker) string {
	if h.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if err := c.Ping(ctx); err != nil {
		return "unhealthy"
	}

	return "healthy"
}

// RegisterRoutes registers health check routes. Health is never rate limited.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"Meta"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
		},
	}, h.Check)
}
