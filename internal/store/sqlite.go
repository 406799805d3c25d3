package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-cache/internal/common"
	"github.com/i474232898/weather-cache/internal/weather"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS weather_data (
		city_key          TEXT PRIMARY KEY,
		city              TEXT NOT NULL,
		country           TEXT NOT NULL,
		temperature       REAL NOT NULL,
		weather_condition TEXT NOT NULL,
		humidity          INTEGER NOT NULL,
		wind_speed        REAL NOT NULL,
		last_updated      INTEGER NOT NULL,
		created_at        INTEGER NOT NULL,
		api_last_updated  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_weather_data_last_updated ON weather_data(last_updated);
	CREATE INDEX IF NOT EXISTS idx_weather_data_created_at ON weather_data(created_at);
`

const sqliteColumns = `city, country, temperature, weather_condition, humidity,
	wind_speed, last_updated, created_at, api_last_updated`

// SQLiteStore persists snapshots in a single SQLite file. Timestamps are
// stored as unix nanoseconds so range filters compare as integers.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string, now func() time.Time) (*SQLiteStore, error) {
	if now == nil {
		now = time.Now
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One writer keeps upserts serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &SQLiteStore{db: db, now: now}, nil
}

func (s *SQLiteStore) FindByCity(ctx context.Context, city string) (weather.WeatherSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM weather_data WHERE city_key = ?`,
		common.NormalizeCity(city))
	return scanSQLite(row)
}

func (s *SQLiteStore) FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (weather.WeatherSnapshot, error) {
	cutoff := weather.RecencyCutoff(s.now(), maxAgeMinutes)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM weather_data WHERE city_key = ? AND last_updated > ?`,
		common.NormalizeCity(city), cutoff.UnixNano())
	return scanSQLite(row)
}

func (s *SQLiteStore) Upsert(ctx context.Context, snap weather.WeatherSnapshot) (weather.WeatherSnapshot, error) {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = s.now()
	}

	// created_at keeps its first-insert value.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_data (city_key, `+sqliteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city_key) DO UPDATE SET
			city = excluded.city,
			country = excluded.country,
			temperature = excluded.temperature,
			weather_condition = excluded.weather_condition,
			humidity = excluded.humidity,
			wind_speed = excluded.wind_speed,
			last_updated = excluded.last_updated,
			api_last_updated = excluded.api_last_updated
	`,
		common.NormalizeCity(snap.City),
		snap.City,
		snap.Country,
		snap.Temperature,
		snap.Condition,
		snap.Humidity,
		snap.WindSpeed,
		snap.LastUpdated.UnixNano(),
		snap.CreatedAt.UnixNano(),
		snap.APILastUpdated,
	)
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("upserting %s: %w", snap.City, err)
	}
	return s.FindByCity(ctx, snap.City)
}

func (s *SQLiteStore) DeleteByCity(ctx context.Context, city string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM weather_data WHERE city_key = ?`, common.NormalizeCity(city))
	return err
}

func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM weather_data WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather_data`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) CountFreshSince(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM weather_data WHERE last_updated >= ?`, cutoff.UnixNano()).Scan(&n)
	return n, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]weather.WeatherSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteColumns+` FROM weather_data ORDER BY city_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []weather.WeatherSnapshot
	for rows.Next() {
		snap, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (weather.WeatherSnapshot, error) {
	var (
		snap                   weather.WeatherSnapshot
		lastUpdated, createdAt int64
	)
	err := row.Scan(
		&snap.City,
		&snap.Country,
		&snap.Temperature,
		&snap.Condition,
		&snap.Humidity,
		&snap.WindSpeed,
		&lastUpdated,
		&createdAt,
		&snap.APILastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.WeatherSnapshot{}, weather.ErrSnapshotNotFound
	}
	if err != nil {
		return weather.WeatherSnapshot{}, fmt.Errorf("scanning weather row: %w", err)
	}
	snap.LastUpdated = time.Unix(0, lastUpdated).UTC()
	snap.CreatedAt = time.Unix(0, createdAt).UTC()
	return snap, nil
}

var _ weather.RecordStore = (*SQLiteStore)(nil)
