package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-cache/internal/store"
	"github.com/i474232898/weather-cache/internal/weather"
)

const (
	ProviderWeatherAPI  = "weatherapi"
	ProviderOpenWeather = "openweather"
)

type AppConfig struct {
	// Upstream.
	Provider          string
	WeatherAPIKey     string
	WeatherAPIURL     string
	OpenWeatherAPIKey string
	HTTPTimeout       time.Duration
	MaxRetries        int
	RateLimit         float64 // requests per second, 0 = unlimited

	// Freshness TTL in minutes.
	CacheMaxAgeMinutes int

	// Maintenance jobs.
	CleanupInterval time.Duration // 0 disables the sweep
	CleanupDays     int
	WarmCities      []string
	WarmInterval    time.Duration

	Store store.Options

	LogLevel string
	Env      string
	Port     string
}

// Load reads configuration from the environment, after loading a .env file
// if one exists.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Provider:           strings.ToLower(getenvDefault("WEATHER_PROVIDER", ProviderWeatherAPI)),
		WeatherAPIKey:      os.Getenv("WEATHER_API_KEY"),
		WeatherAPIURL:      getenvDefault("WEATHER_API_URL", "https://api.weatherapi.com/v1"),
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		MaxRetries:         getenvInt("UPSTREAM_MAX_RETRIES", 0),
		CacheMaxAgeMinutes: getenvInt("WEATHER_CACHE_MAX_AGE_MINUTES", weather.DefaultCacheMaxAgeMinutes),
		CleanupDays:        getenvInt("CACHE_CLEANUP_DAYS", 7),
		WarmCities:         splitList(os.Getenv("WARM_CITIES")),
		Store: store.Options{
			Driver:        strings.ToLower(getenvDefault("STORE_DRIVER", store.DriverSQLite)),
			SQLitePath:    getenvDefault("SQLITE_PATH", "data/weather.db"),
			PostgresDSN:   os.Getenv("POSTGRES_DSN"),
			RedisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getenvInt("REDIS_DB", 0),
		},
		LogLevel: getenvDefault("LOG_LEVEL", "info"),
		Env:      getenvDefault("APP_ENV", "development"),
		Port:     getenvDefault("PORT", "8080"),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getenvDuration("CACHE_CLEANUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WarmInterval, err = getenvDuration("WARM_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	rps, err := strconv.ParseFloat(getenvDefault("UPSTREAM_RATE_LIMIT", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid UPSTREAM_RATE_LIMIT: %w", err)
	}
	cfg.RateLimit = rps

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted. API keys are checked when
// the upstream client is built.
func (c *AppConfig) Validate() error {
	if c.CacheMaxAgeMinutes < 0 {
		return fmt.Errorf("WEATHER_CACHE_MAX_AGE_MINUTES must not be negative, got %d", c.CacheMaxAgeMinutes)
	}
	if c.CleanupDays < 0 {
		return fmt.Errorf("CACHE_CLEANUP_DAYS must not be negative, got %d", c.CleanupDays)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("UPSTREAM_RATE_LIMIT must not be negative, got %v", c.RateLimit)
	}

	switch c.Provider {
	case ProviderWeatherAPI, ProviderOpenWeather:
	default:
		return fmt.Errorf("unknown WEATHER_PROVIDER %q", c.Provider)
	}

	switch c.Store.Driver {
	case store.DriverMemory, store.DriverSQLite, store.DriverRedis:
	case store.DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORE_DRIVER=%s", store.DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	return nil
}

// APIKey returns the key for the selected provider.
func (c *AppConfig) APIKey() string {
	if c.Provider == ProviderOpenWeather {
		return c.OpenWeatherAPIKey
	}
	return c.WeatherAPIKey
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
