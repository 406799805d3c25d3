package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-cache/internal/store"
	"github.com/i474232898/weather-cache/internal/weather"
)

const londonPayload = `{
	"location": {"name": "London", "country": "United Kingdom", "tz_id": "Europe/London", "localtime": "2025-06-16 21:30"},
	"current": {
		"last_updated": "2025-06-16 21:15",
		"temp_c": 15.0,
		"humidity": 65,
		"wind_kph": 12.5,
		"condition": {"text": "Partly cloudy", "icon": "//cdn.weatherapi.com/weather/64x64/day/116.png"}
	}
}`

const tokyoWithoutName = `{
	"location": {"country": "Japan"},
	"current": {"last_updated": "2025-06-16 20:00", "temp_c": 25.0, "humidity": 75, "wind_kph": 10.0, "condition": {"text": "Humid"}}
}`

func newTestWeatherAPIClient(t *testing.T, srv *httptest.Server, retries int) *WeatherAPIClient {
	t.Helper()
	c, err := NewWeatherAPIClient(Config{
		HTTPClient: srv.Client(),
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		MaxRetries: retries,
	})
	require.NoError(t, err)
	return c
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestNewWeatherAPIClientRequiresKey(t *testing.T) {
	_, err := NewWeatherAPIClient(Config{APIKey: "  "})
	require.Error(t, err)
	assert.True(t, weather.IsKind(err, weather.KindConfiguration))

	ue, ok := weather.AsUpstreamError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
}

func TestWeatherAPIFetchCurrent(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		assert.Equal(t, "/current.json", r.URL.Path)
		respond(http.StatusOK, londonPayload)(w, r)
	}))
	defer srv.Close()

	c := newTestWeatherAPIClient(t, srv, 0)
	attrs, err := c.FetchCurrent(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, weather.WeatherAttributes{
		City:        "London",
		Country:     "United Kingdom",
		Temperature: 15.0,
		Condition:   "Partly cloudy",
		Humidity:    65,
		WindSpeed:   12.5,
		LastUpdated: "2025-06-16 21:15",
		LocalTime:   "2025-06-16 21:30",
		Timezone:    "Europe/London",
		Icon:        "//cdn.weatherapi.com/weather/64x64/day/116.png",
	}, attrs)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"test-key"}, q["key"])
	assert.Equal(t, []string{"London"}, q["q"])
	assert.Equal(t, []string{"no"}, q["aqi"])
}

func TestWeatherAPIErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   weather.ErrorKind
		code   int
	}{
		{"404 is not found", http.StatusNotFound, `{}`, weather.KindNotFound, http.StatusNotFound},
		{"unknown location code", http.StatusBadRequest,
			`{"error":{"code":1006,"message":"No matching location found."}}`, weather.KindNotFound, http.StatusNotFound},
		{"rate limited", http.StatusTooManyRequests, `{}`, weather.KindRateLimited, http.StatusTooManyRequests},
		{"server error", http.StatusInternalServerError, `{}`, weather.KindTransport, http.StatusServiceUnavailable},
		{"forbidden", http.StatusForbidden,
			`{"error":{"code":2008,"message":"API key has been disabled."}}`, weather.KindTransport, http.StatusServiceUnavailable},
		{"invalid json", http.StatusOK, `{not json`, weather.KindInvalidResponse, http.StatusBadGateway},
		{"missing fields", http.StatusOK, `{"location":{"name":"London"}}`, weather.KindInvalidResponse, http.StatusBadGateway},
		{"missing city name", http.StatusOK, tokyoWithoutName, weather.KindInvalidResponse, http.StatusBadGateway},
		{"missing country", http.StatusOK,
			`{"location":{"name":"Tokyo"},"current":{"last_updated":"2025-06-16 20:00","temp_c":25,"condition":{"text":"Humid"}}}`,
			weather.KindInvalidResponse, http.StatusBadGateway},
		{"missing condition text", http.StatusOK,
			`{"location":{"name":"Tokyo","country":"Japan"},"current":{"last_updated":"2025-06-16 20:00","temp_c":25,"condition":{}}}`,
			weather.KindInvalidResponse, http.StatusBadGateway},
		{"missing last updated", http.StatusOK,
			`{"location":{"name":"Tokyo","country":"Japan"},"current":{"temp_c":25,"condition":{"text":"Humid"}}}`,
			weather.KindInvalidResponse, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(respond(tt.status, tt.body))
			defer srv.Close()

			c := newTestWeatherAPIClient(t, srv, 0)
			_, err := c.FetchCurrent(context.Background(), "Atlantis")
			require.Error(t, err)

			ue, ok := weather.AsUpstreamError(err)
			require.True(t, ok, "expected UpstreamError, got %T", err)
			assert.Equal(t, tt.kind, ue.Kind)
			assert.Equal(t, tt.code, ue.StatusCode)
			assert.Equal(t, string(tt.kind), ue.Context["error_type"])
		})
	}
}

func TestWeatherAPINotFoundMessage(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusNotFound, `{}`))
	defer srv.Close()

	c := newTestWeatherAPIClient(t, srv, 0)
	_, err := c.FetchCurrent(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.Equal(t, `City "Atlantis" not found`, err.Error())
}

func TestWeatherAPITimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		respond(http.StatusOK, londonPayload)(w, r)
	}))
	defer srv.Close()

	c, err := NewWeatherAPIClient(Config{
		HTTPClient: &http.Client{Timeout: 20 * time.Millisecond},
		APIKey:     "test-key",
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)

	_, err = c.FetchCurrent(context.Background(), "London")
	require.Error(t, err)
	assert.True(t, weather.IsKind(err, weather.KindTransport))
	assert.Contains(t, err.Error(), "timed out")
}

func TestWeatherAPIRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			respond(http.StatusBadGateway, `{}`)(w, r)
			return
		}
		respond(http.StatusOK, londonPayload)(w, r)
	}))
	defer srv.Close()

	c := newTestWeatherAPIClient(t, srv, 1)
	attrs, err := c.FetchCurrent(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, "London", attrs.City)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestWeatherAPIDoesNotRetryRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		respond(http.StatusTooManyRequests, `{}`)(w, r)
	}))
	defer srv.Close()

	c := newTestWeatherAPIClient(t, srv, 3)
	_, err := c.FetchCurrent(context.Background(), "London")
	assert.True(t, weather.IsKind(err, weather.KindRateLimited))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenWeatherFetchCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		respond(http.StatusOK, `{
			"name": "Paris", "dt": 1750110000, "timezone": 7200,
			"sys": {"country": "FR"},
			"main": {"temp": 18.0, "humidity": 45},
			"wind": {"speed": 2.5},
			"weather": [{"description": "clear sky", "icon": "01d"}]
		}`)(w, r)
	}))
	defer srv.Close()

	c, err := NewOpenWeatherClient(Config{HTTPClient: srv.Client(), APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	attrs, err := c.FetchCurrent(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", attrs.City)
	assert.Equal(t, "FR", attrs.Country)
	assert.Equal(t, 18.0, attrs.Temperature)
	assert.Equal(t, "clear sky", attrs.Condition)
	assert.Equal(t, 45, attrs.Humidity)
	assert.InDelta(t, 9.0, attrs.WindSpeed, 0.0001)
	assert.Equal(t, "UTC+02:00", attrs.Timezone)
	assert.Equal(t, "2025-06-16 21:40", attrs.LastUpdated)
}

func TestOpenWeatherMissingCountry(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusOK, `{
		"name": "Paris", "dt": 1750110000, "timezone": 7200,
		"sys": {},
		"main": {"temp": 18.0, "humidity": 45},
		"weather": [{"description": "clear sky", "icon": "01d"}]
	}`))
	defer srv.Close()

	c, err := NewOpenWeatherClient(Config{HTTPClient: srv.Client(), APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchCurrent(context.Background(), "Paris")
	assert.True(t, weather.IsKind(err, weather.KindInvalidResponse))
}

func TestOpenWeatherNotFound(t *testing.T) {
	srv := httptest.NewServer(respond(http.StatusNotFound, `{"cod":"404","message":"city not found"}`))
	defer srv.Close()

	c, err := NewOpenWeatherClient(Config{HTTPClient: srv.Client(), APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.FetchCurrent(context.Background(), "Atlantis")
	assert.True(t, weather.IsKind(err, weather.KindNotFound))
}

func TestIncompletePayloadFallsBackToStaleData(t *testing.T) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	st := store.NewMemoryStore(clock)
	_, err := st.Upsert(context.Background(), weather.WeatherSnapshot{
		City:           "Tokyo",
		Country:        "Japan",
		Temperature:    24.0,
		Condition:      "Cloudy",
		Humidity:       70,
		WindSpeed:      8.0,
		LastUpdated:    now.Add(-45 * time.Minute),
		APILastUpdated: "2025-06-16 11:00",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(respond(http.StatusOK, tokyoWithoutName))
	defer srv.Close()

	svc := weather.NewService(st, newTestWeatherAPIClient(t, srv, 0), 30, weather.WithClock(clock))
	res, err := svc.GetWeather(context.Background(), "Tokyo", false)
	require.NoError(t, err)

	assert.True(t, res.Stale)
	assert.Equal(t, "Tokyo", res.City)
	assert.Equal(t, "Cloudy", res.Condition)
	assert.Equal(t, 45, res.CacheAgeMinutes)
}
