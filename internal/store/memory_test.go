package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/throttled-analytics/internal/analytics"
	"github.com/serroba/throttled-analytics/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse(analytics.DateLayout, s)

	return t
}

func fixture() store.Dataset {
	return store.Dataset{
		HourlyEvents: []analytics.HourlyEvents{
			{Date: day("2017-01-02"), Hour: 3, Events: 4},
			{Date: day("2017-01-01"), Hour: 10, Events: 7},
			{Date: day("2017-01-01"), Hour: 2, Events: 5},
			{Date: day("2017-01-03"), Hour: 0, Events: 1},
		},
		HourlyStats: []analytics.HourlyStats{
			{Date: day("2017-01-01"), Hour: 1, Impressions: 100, Clicks: 3, Revenue: 1.5},
			{Date: day("2017-01-01"), Hour: 2, Impressions: 50, Clicks: 1, Revenue: 0.25},
			{Date: day("2017-01-02"), Hour: 0, Impressions: 10, Clicks: 0, Revenue: 0},
		},
		POIs: []analytics.POI{
			{ID: 2, Name: "Vancouver Harbour", Lat: 49.2933, Lon: -123.1115},
			{ID: 1, Name: "EQ Works", Lat: 43.6708, Lon: -79.3899},
		},
	}
}

func TestMemoryStore_HourlyEvents(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(fixture())

	t.Run("orders by date then hour", func(t *testing.T) {
		rows, err := s.HourlyEvents(ctx, analytics.DateRange{})

		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, 2, rows[0].Hour)
		assert.Equal(t, 10, rows[1].Hour)
		assert.Equal(t, day("2017-01-03"), rows[3].Date)
	})

	t.Run("start only selects one day", func(t *testing.T) {
		r, _ := analytics.ParseDateRange("2017-01-02", "")
		rows, err := s.HourlyEvents(ctx, r)

		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(4), rows[0].Events)
	})

	t.Run("both dates are inclusive", func(t *testing.T) {
		r, _ := analytics.ParseDateRange("2017-01-02", "2017-01-03")
		rows, err := s.HourlyEvents(ctx, r)

		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})

	t.Run("empty result is an empty slice", func(t *testing.T) {
		r, _ := analytics.ParseDateRange("2020-01-01", "")
		rows, err := s.HourlyEvents(ctx, r)

		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})
}

func TestMemoryStore_RowCaps(t *testing.T) {
	var data store.Dataset

	start := day("2017-01-01")
	for i := range 30 {
		for h := range 3 {
			data.HourlyEvents = append(data.HourlyEvents,
				analytics.HourlyEvents{Date: start.AddDate(0, 0, i), Hour: h, Events: 1})
		}
	}

	s := store.NewMemoryStore(data)

	hourly, err := s.HourlyEvents(context.Background(), analytics.DateRange{})
	require.NoError(t, err)
	assert.Len(t, hourly, analytics.HourlyLimit)

	daily, err := s.DailyEvents(context.Background(), analytics.DateRange{})
	require.NoError(t, err)
	assert.Len(t, daily, analytics.DailyLimit)
	assert.Equal(t, start, daily[0].Date)
	assert.Equal(t, int64(3), daily[0].Events)
}

func TestMemoryStore_DailyAggregates(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(fixture())

	events, err := s.DailyEvents(ctx, analytics.DateRange{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(12), events[0].Events)

	stats, err := s.DailyStats(ctx, analytics.DateRange{})
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, int64(150), stats[0].Impressions)
	assert.Equal(t, int64(4), stats[0].Clicks)
	assert.InDelta(t, 1.75, stats[0].Revenue, 1e-9)

	hourly, err := s.HourlyStats(ctx, analytics.DateRange{})
	require.NoError(t, err)
	assert.Len(t, hourly, 3)
}

func TestMemoryStore_POIs(t *testing.T) {
	s := store.NewMemoryStore(fixture())

	pois, err := s.POIs(context.Background())

	require.NoError(t, err)
	require.Len(t, pois, 2)
	assert.Equal(t, "EQ Works", pois[0].Name)
}
