package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

var cityPattern = regexp.MustCompile(`^[a-zA-Z\s\-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("cityname", func(fl validator.FieldLevel) bool {
		return cityPattern.MatchString(fl.Field().String())
	})
	return v
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, log logger.Logger) {
	h := &handlers{service: service, log: log}

	api := app.Group("/api/weather")

	api.Get("/", h.index)
	api.Get("/cache/stats", h.cacheStats)
	api.Get("/:city", h.getWeather)
	api.Post("/:city/cache/clear", h.clearCache)
	api.Delete("/:city/cache/clear", h.clearCache)
}

type handlers struct {
	service *weather.Service
	log     logger.Logger
}

// cityParam holds the path parameter shared by the per-city endpoints.
type cityParam struct {
	City string `validate:"required,max=100,cityname"`
}

func parseCityParam(c *fiber.Ctx) (string, error) {
	raw := c.Params("city")
	city, err := url.PathUnescape(raw)
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed city name")
	}

	if err := validate.Struct(cityParam{City: city}); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest,
			"invalid city name: letters, spaces and hyphens only, at most 100 characters")
	}
	return city, nil
}

func (h *handlers) index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"endpoints": fiber.Map{
			"get_weather": "/api/weather/{city}",
			"clear_cache": "/api/weather/{city}/cache/clear",
			"cache_stats": "/api/weather/cache/stats",
		},
		"parameters": fiber.Map{
			"city":    "City name (letters, spaces, hyphens only)",
			"refresh": "Force refresh from API (optional, boolean)",
		},
	})
}

func (h *handlers) getWeather(c *fiber.Ctx) error {
	city, err := parseCityParam(c)
	if err != nil {
		return err
	}

	refresh := false
	if raw := c.Query("refresh"); raw != "" {
		refresh, err = strconv.ParseBool(raw)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "refresh must be a boolean")
		}
	}

	result, err := h.service.GetWeather(c.UserContext(), city, refresh)
	if err != nil {
		requestLogger(c, h.log).WithError(err).WithField("city", city).Errorf("weather lookup failed")
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (h *handlers) clearCache(c *fiber.Ctx) error {
	city, err := parseCityParam(c)
	if err != nil {
		return err
	}

	log := requestLogger(c, h.log).WithField("city", city)
	if err := h.service.ClearCache(c.UserContext(), city); err != nil {
		log.WithError(err).Errorf("error clearing cache via API")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to clear cache")
	}
	log.Infof("cache cleared via API")

	return c.JSON(fiber.Map{
		"success": true,
		"message": fmt.Sprintf("Cache cleared for city: %s", city),
	})
}

func (h *handlers) cacheStats(c *fiber.Ctx) error {
	stats, err := h.service.GetCacheStats(c.UserContext())
	if err != nil {
		requestLogger(c, h.log).WithError(err).Errorf("error getting cache stats")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to get cache statistics")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    stats,
	})
}

// ErrorHandler renders every error as {success:false, error}. Upstream
// errors keep their status code and context.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch ue, ok := weather.AsUpstreamError(err); {
	case ok:
		return c.Status(ue.StatusCode).JSON(fiber.Map{
			"success": false,
			"error":   ue.Message,
			"context": ue.Context,
		})
	case errors.Is(err, weather.ErrInvalidCity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	case errors.As(err, &fe):
		return c.Status(fe.Code).JSON(fiber.Map{
			"success": false,
			"error":   fe.Message,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "An unexpected error occurred",
		})
	}
}
