package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/throttled-analytics/internal/ratelimit"
)

var unthrottled = map[string]any{
	ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true},
}

// RegisterRoutes registers the welcome, quota and report routes. Reports go
// through the rate limiter; the welcome and quota routes do not.
func RegisterRoutes(api huma.API, reports *AnalyticsHandler, quota *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "welcome",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Welcome",
		Tags:        []string{"Meta"},
		Metadata:    unthrottled,
	}, Welcome)

	huma.Register(api, huma.Operation{
		OperationID: "get-quota",
		Method:      http.MethodGet,
		Path:        "/ratelimit",
		Summary:     "Inspect rate limit quota",
		Description: "Reports the caller's remaining quota for the selected strategy without consuming it.",
		Tags:        []string{"Rate limiting"},
		Metadata:    unthrottled,
	}, quota.Quota)

	huma.Register(api, huma.Operation{
		OperationID: "list-hourly-events",
		Method:      http.MethodGet,
		Path:        "/events/hourly",
		Summary:     "Hourly events",
		Description: "Events per hour ordered by date and hour, at most 50 rows.",
		Tags:        []string{"Events"},
	}, reports.HourlyEvents)

	huma.Register(api, huma.Operation{
		OperationID: "list-daily-events",
		Method:      http.MethodGet,
		Path:        "/events/daily",
		Summary:     "Daily events",
		Description: "Events summed per day, at most 20 rows.",
		Tags:        []string{"Events"},
	}, reports.DailyEvents)

	huma.Register(api, huma.Operation{
		OperationID: "list-hourly-stats",
		Method:      http.MethodGet,
		Path:        "/stats/hourly",
		Summary:     "Hourly stats",
		Description: "Impressions, clicks and revenue per hour, at most 50 rows.",
		Tags:        []string{"Stats"},
	}, reports.HourlyStats)

	huma.Register(api, huma.Operation{
		OperationID: "list-daily-stats",
		Method:      http.MethodGet,
		Path:        "/stats/daily",
		Summary:     "Daily stats",
		Description: "Impressions, clicks and revenue summed per day, at most 20 rows.",
		Tags:        []string{"Stats"},
	}, reports.DailyStats)

	huma.Register(api, huma.Operation{
		OperationID: "list-poi",
		Method:      http.MethodGet,
		Path:        "/poi",
		Summary:     "Points of interest",
		Tags:        []string{"POI"},
	}, reports.POIs)
}
