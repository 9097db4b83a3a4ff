package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttled-analytics/internal/analytics"
	"go.uber.org/zap"
)

// AnalyticsHandler serves the report endpoints.
type AnalyticsHandler struct {
	repo   analytics.Repository
	logger *zap.Logger
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(repo analytics.Repository, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{repo: repo, logger: logger}
}

// ReportRequest carries the shared report query parameters.
type ReportRequest struct {
	API       string `doc:"Rate limiting strategy: 1 token bucket, 2 sliding log (default), 3 fixed window" example:"2"          query:"api"`
	StartDate string `doc:"First day to include (YYYY-MM-DD)"                                                example:"2017-01-01" query:"startDate"`
	EndDate   string `doc:"Last day to include (YYYY-MM-DD); used only with startDate"                       example:"2017-01-07" query:"endDate"`
}

// POIRequest only carries the strategy selector.
type POIRequest struct {
	API string `doc:"Rate limiting strategy" example:"2" query:"api"`
}

// ListResponse is a JSON array of report rows.
type ListResponse[T any] struct {
	Body []T
}

func (h *AnalyticsHandler) HourlyEvents(
	ctx context.Context, req *ReportRequest,
) (*ListResponse[analytics.HourlyEvents], error) {
	return report(ctx, h, req, "hourly events", h.repo.HourlyEvents)
}

func (h *AnalyticsHandler) DailyEvents(
	ctx context.Context, req *ReportRequest,
) (*ListResponse[analytics.DailyEvents], error) {
	return report(ctx, h, req, "daily events", h.repo.DailyEvents)
}

func (h *AnalyticsHandler) HourlyStats(
	ctx context.Context, req *ReportRequest,
) (*ListResponse[analytics.HourlyStats], error) {
	return report(ctx, h, req, "hourly stats", h.repo.HourlyStats)
}

func (h *AnalyticsHandler) DailyStats(
	ctx context.Context, req *ReportRequest,
) (*ListResponse[analytics.DailyStats], error) {
	return report(ctx, h, req, "daily stats", h.repo.DailyStats)
}

func (h *AnalyticsHandler) POIs(ctx context.Context, _ *POIRequest) (*ListResponse[analytics.POI], error) {
	rows, err := h.repo.POIs(ctx)
	if err != nil {
		h.logFailure(ctx, "poi", err)

		return nil, huma.Error500InternalServerError("failed to load poi")
	}

	return &ListResponse[analytics.POI]{Body: rows}, nil
}

func report[T any](
	ctx context.Context,
	h *AnalyticsHandler,
	req *ReportRequest,
	name string,
	load func(context.Context, analytics.DateRange) ([]T, error),
) (*ListResponse[T], error) {
	r, err := analytics.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidDate) {
			return nil, huma.Error400BadRequest(err.Error())
		}

		return nil, err
	}

	rows, err := load(ctx, r)
	if err != nil {
		h.logFailure(ctx, name, err)

		return nil, huma.Error500InternalServerError("failed to load " + name)
	}

	return &ListResponse[T]{Body: rows}, nil
}

func (h *AnalyticsHandler) logFailure(ctx context.Context, name string, err error) {
	meta := RequestMetaFromContext(ctx)

	h.logger.Error("report query failed",
		zap.String("report", name),
		zap.String("request_id", meta.RequestID),
		zap.Error(err),
	)
}
