package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cache/internal/common"
	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

// DefaultWeatherAPIURL is the WeatherAPI.com v1 base URL.
const DefaultWeatherAPIURL = "https://api.weatherapi.com/v1"

// weatherAPINoLocation is WeatherAPI.com's error code for an unknown location.
const weatherAPINoLocation = 1006

// WeatherAPIClient implements weather.UpstreamClient for WeatherAPI.com.
type WeatherAPIClient struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     logger.Logger
}

// NewWeatherAPIClient returns a configuration UpstreamError when no API key
// is set.
func NewWeatherAPIClient(cfg Config) (*WeatherAPIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, weather.ErrAPIKeyMissing()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultWeatherAPIURL
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	return &WeatherAPIClient{
		name:    "weatherapi",
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		httpCfg: newHTTPClientConfig(cfg),
		circuit: newCircuitBreaker("weatherapi"),
		log:     log.WithField("component", "weatherapi_client"),
	}, nil
}

func (c *WeatherAPIClient) Name() string {
	return c.name
}

func (c *WeatherAPIClient) FetchCurrent(ctx context.Context, city string) (weather.WeatherAttributes, error) {
	log := c.log.WithField("city", city)
	log.Infof("fetching weather data")

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", c.apiKey)
		values.Set("q", city)
		values.Set("aqi", "no")

		u := fmt.Sprintf("%s/current.json?%s", c.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		log.WithError(err).Errorf("weather API transport error")
		return weather.WeatherAttributes{}, classifyRequestError(city, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.WeatherAttributes{}, weather.NewTransportError(
			"Network error: reading response body", map[string]any{"city": city}, err)
	}

	log.WithField("status_code", resp.StatusCode).Debugf("weather API response received")

	if resp.StatusCode != http.StatusOK {
		return weather.WeatherAttributes{}, c.classifyStatus(city, resp.StatusCode, body)
	}

	return decodeWeatherAPI(body)
}

func (c *WeatherAPIClient) classifyStatus(city string, status int, body []byte) *weather.UpstreamError {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)

	c.log.WithFields(map[string]interface{}{
		"city":        city,
		"status_code": status,
		"error":       apiErr.Error.Message,
	}).Errorf("weather API HTTP error")

	if status == http.StatusNotFound ||
		apiErr.Error.Code == weatherAPINoLocation ||
		common.HasAny(apiErr.Error.Message, "no matching location") {
		return weather.NewNotFoundError(city)
	}

	return weather.NewTransportError(
		fmt.Sprintf("HTTP %d", status),
		map[string]any{"status_code": status, "response": string(body)},
		nil,
	)
}

type weatherAPIPayload struct {
	Location *struct {
		Name      string `json:"name"`
		Country   string `json:"country"`
		TzID      string `json:"tz_id"`
		Localtime string `json:"localtime"`
	} `json:"location"`
	Current *struct {
		LastUpdated string  `json:"last_updated"`
		TempC       float64 `json:"temp_c"`
		Humidity    int     `json:"humidity"`
		WindKph     float64 `json:"wind_kph"`
		Condition   struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}

func decodeWeatherAPI(body []byte) (weather.WeatherAttributes, error) {
	var payload weatherAPIPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.WeatherAttributes{}, weather.NewInvalidResponseError(
			"Invalid JSON response", map[string]any{"response": string(body)}, err)
	}
	if payload.Location == nil || payload.Current == nil ||
		anyBlank(payload.Location.Name, payload.Location.Country,
			payload.Current.Condition.Text, payload.Current.LastUpdated) {
		return weather.WeatherAttributes{}, weather.NewInvalidResponseError(
			"Missing required fields in response", map[string]any{"response": string(body)}, nil)
	}

	return weather.WeatherAttributes{
		City:        payload.Location.Name,
		Country:     payload.Location.Country,
		Temperature: payload.Current.TempC,
		Condition:   payload.Current.Condition.Text,
		Humidity:    payload.Current.Humidity,
		WindSpeed:   payload.Current.WindKph,
		LastUpdated: payload.Current.LastUpdated,
		LocalTime:   payload.Location.Localtime,
		Timezone:    payload.Location.TzID,
		Icon:        payload.Current.Condition.Icon,
	}, nil
}

var _ weather.UpstreamClient = (*WeatherAPIClient)(nil)
