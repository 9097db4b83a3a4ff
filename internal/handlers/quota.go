package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

// QuotaHandler reports a caller's remaining quota without spending it.
type QuotaHandler struct {
	selector *ratelimit.Selector
}

// NewQuotaHandler creates a new quota handler.
func NewQuotaHandler(selector *ratelimit.Selector) *QuotaHandler {
	return &QuotaHandler{selector: selector}
}

// QuotaRequest selects the strategy to inspect.
type QuotaRequest struct {
	API string `doc:"Rate limiting strategy to inspect" example:"2" query:"api"`
}

// QuotaResponse describes the caller's current quota.
type QuotaResponse struct {
	Body struct {
		Client    string    `doc:"Client key the quota belongs to"     json:"client"`
		Strategy  string    `doc:"Strategy version inspected"          json:"strategy"`
		Limit     int64     `doc:"Requests allowed per window"         json:"limit"`
		Remaining int64     `doc:"Requests left in the current window" json:"remaining"`
		Allowed   bool      `doc:"Whether the next request would pass" json:"allowed"`
		ResetAt   time.Time `doc:"When the quota next resets"          json:"resetAt"`
	}
}

func (h *QuotaHandler) Quota(ctx context.Context, req *QuotaRequest) (*QuotaResponse, error) {
	version, strategy := h.selector.Select(req.API)

	peeker, ok := strategy.(ratelimit.Peeker)
	if !ok {
		return nil, huma.Error501NotImplemented("strategy " + string(version) + " cannot report quota")
	}

	key := RequestMetaFromContext(ctx).ClientKey
	if key == "" {
		key = ratelimit.UnknownClient
	}

	verdict, err := peeker.Peek(ctx, key)
	if err != nil {
		return nil, huma.Error503ServiceUnavailable("rate limit store unavailable")
	}

	resp := &QuotaResponse{}
	resp.Body.Client = string(key)
	resp.Body.Strategy = string(version)
	resp.Body.Limit = verdict.Limit
	resp.Body.Remaining = verdict.Remaining
	resp.Body.Allowed = verdict.Allowed
	resp.Body.ResetAt = verdict.ResetAt

	return resp, nil
}
