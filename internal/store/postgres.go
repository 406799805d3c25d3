package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/i474232898/weather-cache/internal/common"
	"github.com/i474232898/weather-cache/internal/weather"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS weather_data (
		id                SERIAL PRIMARY KEY,
		city_key          VARCHAR(255) NOT NULL UNIQUE,
		city              VARCHAR(255) NOT NULL,
		country           VARCHAR(255) NOT NULL,
		temperature       DOUBLE PRECISION NOT NULL,
		weather_condition VARCHAR(255) NOT NULL,
		humidity          INTEGER NOT NULL,
		wind_speed        DOUBLE PRECISION NOT NULL,
		last_updated      TIMESTAMPTZ NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		api_last_updated  VARCHAR(255) NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_weather_data_last_updated ON weather_data(last_updated);
	CREATE INDEX IF NOT EXISTS idx_weather_data_created_at ON weather_data(created_at);
`

const postgresColumns = `city, country, temperature, weather_condition, humidity,
	wind_speed, last_updated, created_at, api_last_updated`

// PostgresStore keeps snapshots in a weather_data table with one row per
// normalized city.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// OpenPostgres connects with dsn, pings the server and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, now func() time.Time) (*PostgresStore, error) {
	if now == nil {
		now = time.Now
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &PostgresStore{pool: pool, now: now}, nil
}

func (s *PostgresStore) FindByCity(ctx context.Context, city string) (weather.WeatherSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM weather_data WHERE city_key = $1`,
		common.NormalizeCity(city))
	return scanPostgres(row)
}

func (s *PostgresStore) FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	cutoff := weather.RecencyCutoff(s.now(), maxAgeMinutes)
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM weather_data WHERE city_key = $1 AND last_updated > $2`,
		common.NormalizeCity(city), cutoff)
	return scanPostgres(row)
}

func (s *PostgresStore) Upsert(ctx context.Context, snap weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO weather_data (city_key, `+postgresColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (city_key) DO UPDATE SET
			city = EXCLUDED.city,
			country = EXCLUDED.country,
			temperature = EXCLUDED.temperature,
			weather_condition = EXCLUDED.weather_condition,
			humidity = EXCLUDED.humidity,
			wind_speed = EXCLUDED.wind_speed,
			last_updated = EXCLUDED.last_updated,
			api_last_updated = EXCLUDED.api_last_updated
		RETURNING `+postgresColumns,
		common.NormalizeCity(snap.City),
		snap.City,
		snap.Country,
		snap.Temperature,
		snap.Condition,
		snap.Humidity,
		snap.WindSpeed,
		snap.LastUpdated,
		snap.CreatedAt,
		snap.APILastUpdated,
	)
	stored, err := scanPostgres(row)
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("upserting %s: %w", snap.City, err)
	}
	return stored, nil
}

func (s *PostgresStore) DeleteByCity(ctx context.Context, city string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM weather_data WHERE city_key = $1`, common.NormalizeCity(city))
	return err
}

func (s *PostgresStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM weather_data WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old data: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM weather_data`).Scan(&n)
	return n, err
}

func (s *PostgresStore) CountFreshSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM weather_data WHERE last_updated >= $1`, cutoff).Scan(&n)
	return n, err
}

func (s *PostgresStore) List(ctx context.Context) ([]weather.WeatherSnapshot, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postgresColumns+` FROM weather_data ORDER BY city_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query weather data: %w", err)
	}
	defer rows.Close()

	var out []weather.WeatherSnapshot
	for rows.Next() {
		snap, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (weather.WeatherSnapshot, error) {
	var snap weather.WeatherSnapshot
	err := row.Scan(
		&snap.City,
		&snap.Country,
		&snap.Temperature,
		&snap.Condition,
		&snap.Humidity,
		&snap.WindSpeed,
		&snap.LastUpdated,
		&snap.CreatedAt,
		&snap.APILastUpdated,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("failed to scan weather data: %w", err)
	}
	snap.LastUpdated = snap.LastUpdated.UTC()
	snap.CreatedAt = snap.CreatedAt.UTC()
	return snap, nil
}

var _ weather.RecordStore = (*PostgresStore)(nil)
