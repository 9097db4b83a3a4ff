package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/throttled-analytics/internal/analytics"
)

// PostgresStore is a PostgreSQL implementation of analytics.Repository.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed report store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	hourlyEventsQuery = `
		SELECT date, hour, events::bigint
		FROM hourly_events
		%s
		ORDER BY date, hour
		LIMIT %d`

	dailyEventsQuery = `
		SELECT date, SUM(events)::bigint AS events
		FROM hourly_events
		%s
		GROUP BY date
		ORDER BY date
		LIMIT %d`

	hourlyStatsQuery = `
		SELECT date, hour, impressions::bigint, clicks::bigint, revenue::float8
		FROM hourly_stats
		%s
		ORDER BY date, hour
		LIMIT %d`

	dailyStatsQuery = `
		SELECT date,
			SUM(impressions)::bigint AS impressions,
			SUM(clicks)::bigint AS clicks,
			SUM(revenue)::float8 AS revenue
		FROM hourly_stats
		%s
		GROUP BY date
		ORDER BY date
		LIMIT %d`

	poiQuery = `
		SELECT poi_id, name, lat, lon
		FROM poi
		ORDER BY poi_id`
)

// dateFilter renders the WHERE clause for r. Dates are always bound as
// parameters, never spliced into the SQL text.
func dateFilter(r analytics.DateRange) (string, []any) {
	switch {
	case r.IsBetween():
		return "WHERE date BETWEEN $1 AND $2", []any{r.Start, r.End}
	case r.IsSingleDay():
		return "WHERE date = $1", []any{r.Start}
	default:
		return "", nil
	}
}

func (p *PostgresStore) HourlyEvents(ctx context.Context, r analytics.DateRange) ([]analytics.HourlyEvents, error) {
	where, args := dateFilter(r)

	return query(ctx, p.pool, fmt.Sprintf(hourlyEventsQuery, where, analytics.HourlyLimit), args,
		func(row pgx.CollectableRow) (analytics.HourlyEvents, error) {
			var e analytics.HourlyEvents
			err := row.Scan(&e.Date, &e.Hour, &e.Events)

			return e, err
		})
}

func (p *PostgresStore) DailyEvents(ctx context.Context, r analytics.DateRange) ([]analytics.DailyEvents, error) {
	where, args := dateFilter(r)

	return query(ctx, p.pool, fmt.Sprintf(dailyEventsQuery, where, analytics.DailyLimit), args,
		func(row pgx.CollectableRow) (analytics.DailyEvents, error) {
			var e analytics.DailyEvents
			err := row.Scan(&e.Date, &e.Events)

			return e, err
		})
}

func (p *PostgresStore) HourlyStats(ctx context.Context, r analytics.DateRange) ([]analytics.HourlyStats, error) {
	where, args := dateFilter(r)

	return query(ctx, p.pool, fmt.Sprintf(hourlyStatsQuery, where, analytics.HourlyLimit), args,
		func(row pgx.CollectableRow) (analytics.HourlyStats, error) {
			var s analytics.HourlyStats
			err := row.Scan(&s.Date, &s.Hour, &s.Impressions, &s.Clicks, &s.Revenue)

			return s, err
		})
}

func (p *PostgresStore) DailyStats(ctx context.Context, r analytics.DateRange) ([]analytics.DailyStats, error) {
	where, args := dateFilter(r)

	return query(ctx, p.pool, fmt.Sprintf(dailyStatsQuery, where, analytics.DailyLimit), args,
		func(row pgx.CollectableRow) (analytics.DailyStats, error) {
			var s analytics.DailyStats
			err := row.Scan(&s.Date, &s.Impressions, &s.Clicks, &s.Revenue)

			return s, err
		})
}

func (p *PostgresStore) POIs(ctx context.Context) ([]analytics.POI, error) {
	return query(ctx, p.pool, poiQuery, nil,
		func(row pgx.CollectableRow) (analytics.POI, error) {
			var poi analytics.POI
			err := row.Scan(&poi.ID, &poi.Name, &poi.Lat, &poi.Lon)

			return poi, err
		})
}

// Ping checks PostgreSQL connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Shutdown closes the connection pool.
func (p *PostgresStore) Shutdown() error {
	p.pool.Close()

	return nil
}

// query runs sql and collects every row. An empty result is an empty slice, not nil.
func query[T any](
	ctx context.Context, pool *pgxpool.Pool, sql string, args []any, scan pgx.RowToFunc[T],
) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out, err := pgx.CollectRows(rows, scan)
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}

	if out == nil {
		out = []T{}
	}

	return out, nil
}

// Compile-time check.
var _ analytics.Repository = (*PostgresStore)(nil)
