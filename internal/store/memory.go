package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/serroba/throttled-analytics/internal/analytics"
)

// Dataset holds the raw hourly tables a MemoryStore reports from.
type Dataset struct {
	HourlyEvents []analytics.HourlyEvents
	HourlyStats  []analytics.HourlyStats
	POIs         []analytics.POI
}

// MemoryStore is an in-memory implementation of analytics.Repository. It
// applies the same filtering, grouping, ordering and row caps as PostgresStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data Dataset
}

// NewMemoryStore creates a store over a copy of data.
func NewMemoryStore(data Dataset) *MemoryStore {
	return &MemoryStore{data: Dataset{
		HourlyEvents: slices.Clone(data.HourlyEvents),
		HourlyStats:  slices.Clone(data.HourlyStats),
		POIs:         slices.Clone(data.POIs),
	}}
}

func (m *MemoryStore) HourlyEvents(_ context.Context, r analytics.DateRange) ([]analytics.HourlyEvents, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []analytics.HourlyEvents{}

	for _, e := range m.data.HourlyEvents {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}

	slices.SortStableFunc(out, func(a, b analytics.HourlyEvents) int {
		return compareDayHour(a.Date, a.Hour, b.Date, b.Hour)
	})

	return capRows(out, analytics.HourlyLimit), nil
}

func (m *MemoryStore) DailyEvents(_ context.Context, r analytics.DateRange) ([]analytics.DailyEvents, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDay := map[time.Time]*analytics.DailyEvents{}
	out := []analytics.DailyEvents{}

	for _, e := range m.data.HourlyEvents {
		if !r.Contains(e.Date) {
			continue
		}

		if d, ok := byDay[e.Date]; ok {
			d.Events += e.Events

			continue
		}

		byDay[e.Date] = &analytics.DailyEvents{Date: e.Date, Events: e.Events}
	}

	for _, d := range byDay {
		out = append(out, *d)
	}

	slices.SortFunc(out, func(a, b analytics.DailyEvents) int { return a.Date.Compare(b.Date) })

	return capRows(out, analytics.DailyLimit), nil
}

func (m *MemoryStore) HourlyStats(_ context.Context, r analytics.DateRange) ([]analytics.HourlyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []analytics.HourlyStats{}

	for _, s := range m.data.HourlyStats {
		if r.Contains(s.Date) {
			out = append(out, s)
		}
	}

	slices.SortStableFunc(out, func(a, b analytics.HourlyStats) int {
		return compareDayHour(a.Date, a.Hour, b.Date, b.Hour)
	})

	return capRows(out, analytics.HourlyLimit), nil
}

func (m *MemoryStore) DailyStats(_ context.Context, r analytics.DateRange) ([]analytics.DailyStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDay := map[time.Time]*analytics.DailyStats{}
	out := []analytics.DailyStats{}

	for _, s := range m.data.HourlyStats {
		if !r.Contains(s.Date) {
			continue
		}

		d, ok := byDay[s.Date]
		if !ok {
			d = &analytics.DailyStats{Date: s.Date}
			byDay[s.Date] = d
		}

		d.Impressions += s.Impressions
		d.Clicks += s.Clicks
		d.Revenue += s.Revenue
	}

	for _, d := range byDay {
		out = append(out, *d)
	}

	slices.SortFunc(out, func(a, b analytics.DailyStats) int { return a.Date.Compare(b.Date) })

	return capRows(out, analytics.DailyLimit), nil
}

func (m *MemoryStore) POIs(_ context.Context) ([]analytics.POI, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.data.POIs)
	if out == nil {
		out = []analytics.POI{}
	}

	slices.SortFunc(out, func(a, b analytics.POI) int { return int(a.ID - b.ID) })

	return out, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(_ context.Context) error {
	return nil
}

func compareDayHour(aDay time.Time, aHour int, bDay time.Time, bHour int) int {
	if c := aDay.Compare(bDay); c != 0 {
		return c
	}

	return aHour - bHour
}

func capRows[T any](rows []T, limit int) []T {
	if len(rows) > limit {
		return rows[:limit]
	}

	return rows
}

// Compile-time check.
var _ analytics.Repository = (*MemoryStore)(nil)
