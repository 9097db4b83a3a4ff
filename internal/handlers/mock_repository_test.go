package handlers_test

import (
	"context"

	"github.com/serroba/throttled-analytics/internal/analytics"
)

// mockRepository records the range it was asked for and returns canned rows.
type mockRepository struct {
	lastRange    analytics.DateRange
	hourlyEvents []analytics.HourlyEvents
	dailyEvents  []analytics.DailyEvents
	hourlyStats  []analytics.HourlyStats
	dailyStats   []analytics.DailyStats
	pois         []analytics.POI
	err          error
	calls        int
}

func (m *mockRepository) HourlyEvents(_ context.Context, r analytics.DateRange) ([]analytics.HourlyEvents, error) {
	m.calls++
	m.lastRange = r

	return m.hourlyEvents, m.err
}

func (m *mockRepository) DailyEvents(_ context.Context, r analytics.DateRange) ([]analytics.DailyEvents, error) {
	m.calls++
	m.lastRange = r

	return m.dailyEvents, m.err
}

func (m *mockRepository) HourlyStats(_ context.Context, r analytics.DateRange) ([]analytics.HourlyStats, error) {
	m.calls++
	m.lastRange = r

	return m.hourlyStats, m.err
}

func (m *mockRepository) DailyStats(_ context.Context, r analytics.DateRange) ([]analytics.DailyStats, error) {
	m.calls++
	m.lastRange = r

	return m.dailyStats, m.err
}

func (m *mockRepository) POIs(_ context.Context) ([]analytics.POI, error) {
	m.calls++

	return m.pois, m.err
}
