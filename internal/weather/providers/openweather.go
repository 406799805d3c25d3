package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherClient implements weather.UpstreamClient for OpenWeatherMap.
type OpenWeatherClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     logger.Logger
}

func NewOpenWeatherClient(cfg Config) (*OpenWeatherClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, weather.ErrAPIKeyMissing()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &OpenWeatherClient{
		name:    "openweathermap",
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpCfg: newHTTPClientConfig(cfg),
		circuit: newCircuitBreaker("openweather"),
		log:     log.WithField("component", "openweather_client"),
	}, nil
}

func (c *OpenWeatherClient) Name() string {
	return c.name
}

func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, city string) (weather.WeatherAttributes, error) {
	log := c.log.WithField("city", city)
	log.Infof("fetching weather data")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", c.apiKey)
		values.Set("units", "metric")
		values.Set("q", city)

		u := fmt.Sprintf("%s?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		log.WithError(err).Errorf("openweather transport error")
		return weather.WeatherAttributes{}, classifyRequestError(city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.WeatherAttributes{}, weather.NewTransportError(
			"Network error: reading response body", map[string]any{"city": city}, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return weather.WeatherAttributes{}, weather.NewNotFoundError(city)
	case resp.StatusCode != http.StatusOK:
		log.WithField("status_code", resp.StatusCode).Errorf("openweather HTTP error")
		return weather.WeatherAttributes{}, weather.NewTransportError(
			fmt.Sprintf("HTTP %d", resp.StatusCode),
			map[string]any{"status_code": resp.StatusCode, "response": string(body)},
			nil,
		)
	}

	return decodeOpenWeather(body)
}

type openWeatherPayload struct {
	Name     string `json:"name"`
	Dt       int64  `json:"dt"`
	Timezone int    `json:"timezone"` // seconds east of UTC
	Sys      struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"` // m/s
	} `json:"wind"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

func decodeOpenWeather(body []byte) (weather.WeatherAttributes, error) {
	var payload openWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.WeatherAttributes{}, weather.NewInvalidResponseError(
			"Invalid JSON response", map[string]any{"response": string(body)}, err)
	}
	if payload.Main == nil || len(payload.Weather) == 0 || payload.Dt == 0 ||
		anyBlank(payload.Name, payload.Sys.Country, payload.Weather[0].Description) {
		return weather.WeatherAttributes{}, weather.NewInvalidResponseError(
			"Missing required fields in response", map[string]any{"response": string(body)}, nil)
	}

	observed := time.Unix(payload.Dt, 0).UTC()
	local := time.Now().In(time.FixedZone("", payload.Timezone))

	return weather.WeatherAttributes{
		City:        payload.Name,
		Country:     payload.Sys.Country,
		Temperature: payload.Main.Temp,
		Condition:   payload.Weather[0].Description,
		Humidity:    payload.Main.Humidity,
		// Reported in km/h like WeatherAPI.com.
		WindSpeed:   payload.Wind.Speed * 3.6,
		LastUpdated: observed.Format("2006-01-02 15:04"),
		LocalTime:   local.Format("2006-01-02 15:04"),
		Timezone:    "UTC" + local.Format("-07:00"),
		Icon:        fmt.Sprintf("//openweathermap.org/img/wn/%s@2x.png", payload.Weather[0].Icon),
	}, nil
}

var _ weather.UpstreamClient = (*OpenWeatherClient)(nil)
