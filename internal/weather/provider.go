package weather

import (
	"context"
	"time"
)

// UpstreamClient abstracts the third-party weather API. Implementations
// return *UpstreamError for every failure.
type UpstreamClient interface {
	Name() string
	FetchCurrent(ctx context.Context, city string) (WeatherAttributes, error)
}

// RecordStore is the contract every persistent (or in-memory) snapshot store
// must satisfy. City lookups are case-insensitive.
type RecordStore interface {
	// FindByCity returns the snapshot for city regardless of age, or
	// ErrSnapshotNotFound.
	FindByCity(ctx context.Context, city string) (WeatherSnapshot, error)
	// FindRecentByCity returns the snapshot for city only if LastUpdated is
	// after RecencyCutoff(now, maxAgeMinutes), else ErrSnapshotNotFound.
	FindRecentByCity(ctx context.Context, city string, maxAgeMinutes int) (WeatherSnapshot, error)
	// Upsert updates the existing row for the city in place, keeping its
	// CreatedAt, or inserts a new one with CreatedAt = now when unset.
	Upsert(ctx context.Context, s WeatherSnapshot) (WeatherSnapshot, error)
	DeleteByCity(ctx context.Context, city string) error
	// DeleteOlderThan removes rows whose CreatedAt is strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	CountAll(ctx context.Context) (int, error)
	// CountFreshSince counts rows with LastUpdated >= cutoff.
	CountFreshSince(ctx context.Context, cutoff time.Time) (int, error)
	List(ctx context.Context) ([]WeatherSnapshot, error)
	Close() error
}
