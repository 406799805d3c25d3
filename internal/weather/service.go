package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/i474232898/weather-cache/internal/logger"
)

// DefaultCacheMaxAgeMinutes is the TTL used when none is configured.
const DefaultCacheMaxAgeMinutes = 30

// resolution records which branch of the lookup produced a result.
type resolution int

const (
	resolvedFromCache resolution = iota
	resolvedFromUpstream
	resolvedStale
)

func (r resolution) String() string {
	switch r {
	case resolvedFromCache:
		return "hit"
	case resolvedFromUpstream:
		return "fetched"
	case resolvedStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Service answers weather lookups from the cache, the upstream API, or the
// last known snapshot, in that order of preference.
type Service struct {
	store         RecordStore
	upstream      UpstreamClient
	cache         *CacheManager
	maxAgeMinutes int
	now           func() time.Time
	log           logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the clock used for freshness and statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger. Services log nothing without it.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a new Service. A negative maxAgeMinutes falls back to
// DefaultCacheMaxAgeMinutes.
func NewService(store RecordStore, upstream UpstreamClient, maxAgeMinutes int, opts ...Option) *Service {
	s := &Service{
		store:         store,
		upstream:      upstream,
		maxAgeMinutes: maxAgeMinutes,
		now:           time.Now,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxAgeMinutes < 0 {
		s.maxAgeMinutes = DefaultCacheMaxAgeMinutes
	}
	s.log = s.log.WithField("component", "weather_service")
	s.cache = NewCacheManager(store, s.now, s.log)
	return s
}

// MaxAgeMinutes returns the configured freshness TTL.
func (s *Service) MaxAgeMinutes() int {
	return s.maxAgeMinutes
}

// Cache exposes the cache manager for maintenance jobs.
func (s *Service) Cache() *CacheManager {
	return s.cache
}

// GetWeather returns weather for city. Unless forceRefresh is set a fresh
// cached snapshot is served without calling upstream. When upstream fails
// the last known snapshot is returned with Stale set; the upstream error is
// returned only when nothing is cached for the city.
func (s *Service) GetWeather(ctx context.Context, city string, forceRefresh bool) (WeatherResult, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return WeatherResult{}, ErrInvalidCity
	}

	log := s.log.WithFields(map[string]interface{}{
		"city":          city,
		"force_refresh": forceRefresh,
	})
	log.Infof("getting weather data")

	if !forceRefresh {
		if snapshot, ok := s.lookupFresh(ctx, city, log); ok {
			log.WithField("resolution", resolvedFromCache).Infof("returning weather data from cache")
			return s.format(snapshot, nil, false), nil
		}
	}

	log.Infof("fetching weather data from API")
	attrs, fetchErr := s.upstream.FetchCurrent(ctx, city)
	if fetchErr == nil {
		snapshot, err := s.cache.SaveFromFetch(ctx, attrs)
		if err == nil {
			log.WithField("resolution", resolvedFromUpstream).Debugf("weather data refreshed")
			return s.format(snapshot, &attrs, false), nil
		}
		if !errors.Is(err, ErrInvalidSnapshot) {
			return WeatherResult{}, err
		}
		// Upstream answered but the payload cannot be stored.
		fetchErr = NewInvalidResponseError("Missing required fields in response",
			map[string]any{"city": city}, err)
	}

	errLog := log.WithError(fetchErr)
	if ue, ok := AsUpstreamError(fetchErr); ok {
		errLog = errLog.WithField("context", ue.Context)
	}
	errLog.Errorf("failed to fetch weather from API")

	stale, err := s.store.FindByCity(ctx, city)
	if err != nil {
		if !errors.Is(err, ErrSnapshotNotFound) {
			log.WithError(err).Warnf("stale fallback lookup failed")
		}
		return WeatherResult{}, fetchErr
	}

	log.WithFields(map[string]interface{}{
		"resolution":   resolvedStale,
		"last_updated": stale.LastUpdated.Format(TimestampLayout),
	}).Warnf("returning stale cache data due to API error")
	return s.format(stale, nil, true), nil
}

// lookupFresh checks the store with its recency filter, then confirms with
// the freshness policy, which has the final say.
func (s *Service) lookupFresh(ctx context.Context, city string, log logger.Logger) (WeatherSnapshot, bool) {
	snapshot, err := s.store.FindRecentByCity(ctx, city, s.maxAgeMinutes)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			log.Debugf("cache miss for city")
		} else {
			log.WithError(err).Warnf("cache lookup failed; treating as miss")
		}
		return WeatherSnapshot{}, false
	}

	if !s.cache.IsFresh(snapshot, s.maxAgeMinutes) {
		log.Debugf("cache hit but data is stale")
		return WeatherSnapshot{}, false
	}

	log.Debugf("fresh cache hit for city")
	return snapshot, true
}

// format builds the caller-facing result. Every successful result is backed
// by a cache row, so Cached is always true.
func (s *Service) format(snapshot WeatherSnapshot, fetched *WeatherAttributes, stale bool) WeatherResult {
	r := WeatherResult{
		City:            snapshot.City,
		Country:         snapshot.Country,
		Temperature:     snapshot.Temperature,
		Condition:       snapshot.Condition,
		Humidity:        snapshot.Humidity,
		WindSpeed:       snapshot.WindSpeed,
		LastUpdated:     snapshot.LastUpdated.UTC().Format(TimestampLayout),
		APILastUpdated:  snapshot.APILastUpdated,
		Cached:          true,
		CacheAgeMinutes: s.cache.AgeMinutes(snapshot),
		Stale:           stale,
	}
	if fetched != nil {
		r.LocalTime = fetched.LocalTime
		r.Timezone = fetched.Timezone
		r.Icon = fetched.Icon
	}
	return r
}

// ClearCache drops the cached snapshot for city.
func (s *Service) ClearCache(ctx context.Context, city string) error {
	s.log.WithField("city", city).Infof("clearing weather cache")
	return s.cache.ClearCity(ctx, city)
}

// ClearOldCache removes snapshots created more than days ago.
func (s *Service) ClearOldCache(ctx context.Context, days int) (int, error) {
	s.log.WithField("days_to_keep", days).Infof("clearing old weather cache")
	return s.cache.ClearOlderThan(ctx, days)
}

// GetCacheStats counts stored cities and splits them by the configured TTL.
func (s *Service) GetCacheStats(ctx context.Context) (CacheStats, error) {
	total, err := s.store.CountAll(ctx)
	if err != nil {
		return CacheStats{}, fmt.Errorf("counting cached cities: %w", err)
	}

	cutoff := s.now().Add(-time.Duration(s.maxAgeMinutes) * time.Minute)
	fresh, err := s.store.CountFreshSince(ctx, cutoff)
	if err != nil {
		return CacheStats{}, fmt.Errorf("counting fresh cache entries: %w", err)
	}

	return CacheStats{
		TotalCachedCities:  total,
		FreshCacheEntries:  fresh,
		StaleCacheEntries:  total - fresh,
		CacheMaxAgeMinutes: s.maxAgeMinutes,
	}, nil
}
