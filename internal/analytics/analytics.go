// Package analytics defines the report rows served by the API and the
// repository that produces them.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Row caps applied to every report, matching the published API.
const (
	HourlyLimit = 50
	DailyLimit  = 20
)

// DateLayout is the accepted format of startDate and endDate.
const DateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// HourlyEvents is one row of the hourly events report.
type HourlyEvents struct {
	Date   time.Time `json:"date"`
	Hour   int       `json:"hour"`
	Events int64     `json:"events"`
}

// DailyEvents is the per-day sum of hourly events.
type DailyEvents struct {
	Date   time.Time `json:"date"`
	Events int64     `json:"events"`
}

// HourlyStats is one row of the hourly stats report.
type HourlyStats struct {
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Revenue     float64   `json:"revenue"`
}

// DailyStats is the per-day sum of hourly stats.
type DailyStats struct {
	Date        time.Time `json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Revenue     float64   `json:"revenue"`
}

// POI is a point of interest.
type POI struct {
	ID   int64   `json:"poi_id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Repository answers the report queries.
type Repository interface {
	HourlyEvents(ctx context.Context, r DateRange) ([]HourlyEvents, error)
	DailyEvents(ctx context.Context, r DateRange) ([]DailyEvents, error)
	HourlyStats(ctx context.Context, r DateRange) ([]HourlyStats, error)
	DailyStats(ctx context.Context, r DateRange) ([]DailyStats, error)
	POIs(ctx context.Context) ([]POI, error)
}

// DateRange filters reports by day. With both ends set it is inclusive on
// both sides; with only Start set it selects that single day; an End
// without a Start is ignored.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses the startDate and endDate query values. Empty values are absent.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange

	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: startDate %q", ErrInvalidDate, start)
		}

		r.Start = t
	}

	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: endDate %q", ErrInvalidDate, end)
		}

		r.End = t
	}

	return r, nil
}

// IsBetween reports whether both ends are set.
func (r DateRange) IsBetween() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// IsSingleDay reports whether only the start is set.
func (r DateRange) IsSingleDay() bool {
	return !r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether day passes the filter.
func (r DateRange) Contains(day time.Time) bool {
	switch {
	case r.IsBetween():
		return !day.Before(r.Start) && !day.After(r.End)
	case r.IsSingleDay():
		return day.Equal(r.Start)
	default:
		return true
	}
}

// Key renders the range for use in cache keys.
func (r DateRange) Key() string {
	switch {
	case r.IsBetween():
		return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
	case r.IsSingleDay():
		return r.Start.Format(DateLayout)
	default:
		return "all"
	}
}
