package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the display format for LastUpdated in results.
const TimestampLayout = "2006-01-02 15:04:05"

// WeatherSnapshot is the cached unit: one stored observation per city.
type WeatherSnapshot struct {
	City           string    `json:"city"`
	Country        string    `json:"country"`
	Temperature    float64   `json:"temperature"` // °C
	Condition      string    `json:"condition"`
	Humidity       int       `json:"humidity"` // percent
	WindSpeed      float64   `json:"windSpeed"`
	LastUpdated    time.Time `json:"lastUpdated"`
	CreatedAt      time.Time `json:"createdAt"`
	APILastUpdated string    `json:"apiLastUpdated"`
}

// Validate checks that every required attribute is present.
func (s WeatherSnapshot) Validate() error {
	var missing []string
	if strings.TrimSpace(s.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(s.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(s.Condition) == "" {
		missing = append(missing, "condition")
	}
	if s.APILastUpdated == "" {
		missing = append(missing, "apiLastUpdated")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidSnapshot, strings.Join(missing, ", "))
	}
	if s.Humidity < 0 || s.Humidity > 100 {
		return fmt.Errorf("%w: humidity %d out of range", ErrInvalidSnapshot, s.Humidity)
	}
	return nil
}

// WeatherAttributes is the normalized payload returned by an UpstreamClient.
type WeatherAttributes struct {
	City        string
	Country     string
	Temperature float64
	Condition   string
	Humidity    int
	WindSpeed   float64
	LastUpdated string // as reported upstream

	// Optional, only surfaced on the request that fetched them.
	LocalTime string
	Timezone  string
	Icon      string
}

// WeatherResult is what callers of Service.GetWeather receive.
type WeatherResult struct {
	City            string  `json:"city"`
	Country         string  `json:"country"`
	Temperature     float64 `json:"temperature"`
	Condition       string  `json:"condition"`
	Humidity        int     `json:"humidity"`
	WindSpeed       float64 `json:"wind_speed"`
	LastUpdated     string  `json:"last_updated"`
	APILastUpdated  string  `json:"api_last_updated"`
	Cached          bool    `json:"cached"`
	CacheAgeMinutes int     `json:"cache_age_minutes"`
	Stale           bool    `json:"stale"`

	LocalTime string `json:"local_time,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	Icon      string `json:"icon,omitempty"`
}

// CacheStats summarizes the store contents against the configured TTL.
type CacheStats struct {
	TotalCachedCities  int `json:"total_cached_cities"`
	FreshCacheEntries  int `json:"fresh_cache_entries"`
	StaleCacheEntries  int `json:"stale_cache_entries"`
	CacheMaxAgeMinutes int `json:"cache_max_age_minutes"`
}

var (
	// ErrSnapshotNotFound is returned by stores when no matching snapshot exists.
	ErrSnapshotNotFound = errors.New("no weather snapshot for city")

	// ErrInvalidSnapshot wraps every Validate failure.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidCity is returned when a lookup is attempted with a blank city name.
	ErrInvalidCity = errors.New("city name must not be empty")
)
