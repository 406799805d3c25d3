package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/i474232898/weather-cache/internal/logger"
	"github.com/i474232898/weather-cache/internal/weather"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// AppOptions tweaks NewApp.
type AppOptions struct {
	// AccessLog enables fiber's request logger middleware.
	AccessLog bool
}

// NewApp builds the Fiber app with middleware, health check and API routes.
func NewApp(service *weather.Service, log logger.Logger, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-cache",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestID())
	if opts.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "${time} ${locals:request_id} ${status} ${method} ${path} ${latency}\n",
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-cache",
		})
	})

	RegisterRoutes(app, service, log.WithField("component", "http_api"))
	return app
}

// requestID propagates X-Request-ID or assigns a new one.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals(requestIDKey, id)
		c.Set(requestIDHeader, id)
		return c.Next()
	}
}

func requestLogger(c *fiber.Ctx, log logger.Logger) logger.Logger {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return log.WithField(requestIDKey, id)
	}
	return log
}
