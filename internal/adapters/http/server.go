package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/melih/jmxbridge/internal/collector"
)

// StatesFunc reports the collector's per-target state.
type StatesFunc func() []collector.TargetState

// NewApp wires the routes. states may be nil when no collector runs.
func NewApp(h *FetchHandler, gatherer prometheus.Gatherer, states StatesFunc) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(RequestLogger)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	if gatherer != nil {
		// Fiber <-> Net/HTTP Adaptor
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/fetch", h.Fetch)

	routes := v1.Group("/routes")
	routes.Get("/", h.ListRoutes)
	routes.Get("/:port", h.ResolveRoute)

	containers := v1.Group("/containers")
	containers.Get("/", h.ListContainers)
	containers.Get("/:id/logs", h.GetContainerLogs)

	v1.Get("/targets", func(c *fiber.Ctx) error {
		if states == nil {
			return c.JSON([]collector.TargetState{})
		}
		return c.JSON(states())
	})

	return app
}

// RequestLogger logs every request with its latency, at error level for 5xx.
func RequestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	code := c.Response().StatusCode()
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	entry := logrus.WithFields(logrus.Fields{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   code,
		"duration": time.Since(start),
	})
	switch {
	case err != nil || code >= fiber.StatusInternalServerError:
		entry.WithError(err).Error("<-- [HTTP Error]")
	default:
		entry.Info("<-- [HTTP Response]")
	}
	return err
}
