package weather

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/i474232898/weather-cache/internal/logger"
)

// CacheManager is the only writer of snapshots. It owns upsert semantics,
// invalidation and the freshness entry point used by the service.
type CacheManager struct {
	store  RecordStore
	policy FreshnessPolicy
	now    func() time.Time
	log    logger.Logger
}

// NewCacheManager creates a CacheManager. A nil clock falls back to time.Now.
func NewCacheManager(store RecordStore, now func() time.Time, log logger.Logger) *CacheManager {
	if now == nil {
		now = time.Now
	}
	return &CacheManager{
		store:  store,
		policy: NewFreshnessPolicy(now),
		now:    now,
		log:    log.WithField("component", "cache_manager"),
	}
}

// SaveFromFetch writes attrs through to the store, keeping the existing
// row's CreatedAt when the city is already cached.
func (m *CacheManager) SaveFromFetch(ctx context.Context, attrs WeatherAttributes) (WeatherSnapshot, error) {
	log := m.log.WithField("city", attrs.City)
	log.Infof("saving weather data to cache")

	now := m.now()
	snapshot := WeatherSnapshot{}

	existing, err := m.store.FindByCity(ctx, attrs.City)
	switch {
	case err == nil:
		snapshot = existing
		log.Debugf("updating existing weather data")
	case errors.Is(err, ErrSnapshotNotFound):
		snapshot.CreatedAt = now
		log.Debugf("creating new weather data record")
	default:
		return WeatherSnapshot{}, fmt.Errorf("looking up cached weather for %s: %w", attrs.City, err)
	}

	snapshot.City = attrs.City
	snapshot.Country = attrs.Country
	snapshot.Temperature = attrs.Temperature
	snapshot.Condition = attrs.Condition
	snapshot.Humidity = attrs.Humidity
	snapshot.WindSpeed = attrs.WindSpeed
	snapshot.LastUpdated = now
	snapshot.APILastUpdated = attrs.LastUpdated

	if err := snapshot.Validate(); err != nil {
		return WeatherSnapshot{}, err
	}

	stored, err := m.store.Upsert(ctx, snapshot)
	if err != nil {
		return WeatherSnapshot{}, fmt.Errorf("saving weather for %s: %w", attrs.City, err)
	}

	log.Infof("weather data saved successfully")
	return stored, nil
}

// ClearCity removes the cached snapshot for city. Clearing a city that was
// never cached is not an error.
func (m *CacheManager) ClearCity(ctx context.Context, city string) error {
	m.log.WithField("city", city).Infof("clearing weather cache for city")
	if err := m.store.DeleteByCity(ctx, city); err != nil {
		return fmt.Errorf("clearing cache for %s: %w", city, err)
	}
	return nil
}

// ClearOlderThan deletes every snapshot created more than days ago and
// returns how many were removed.
func (m *CacheManager) ClearOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := m.now().AddDate(0, 0, -days)

	n, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clearing cache older than %d days: %w", days, err)
	}

	m.log.WithFields(map[string]interface{}{
		"deleted_count": n,
		"days_to_keep":  days,
	}).Infof("old weather cache cleared")
	return n, nil
}

// IsFresh reports whether s is at most maxAgeMinutes whole minutes old,
// boundary included, and logs the decision at debug level.
func (m *CacheManager) IsFresh(s WeatherSnapshot, maxAgeMinutes int) bool {
	fresh := m.policy.IsFresh(s, maxAgeMinutes)
	m.log.WithFields(map[string]interface{}{
		"city":            s.City,
		"minutes_old":     m.policy.AgeMinutes(s),
		"max_age_minutes": maxAgeMinutes,
		"is_fresh":        fresh,
	}).Debugf("checking data freshness")
	return fresh
}

// AgeMinutes is the whole minutes between now and s.LastUpdated, floored.
func (m *CacheManager) AgeMinutes(s WeatherSnapshot) int {
	return m.policy.AgeMinutes(s)
}
