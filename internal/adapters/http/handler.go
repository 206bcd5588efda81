package http

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/melih/jmxbridge/internal/core/domain"
	"github.com/melih/jmxbridge/internal/core/ports"
)

// FetchHandler exposes the fetcher and the runtime's container view over HTTP.
type FetchHandler struct {
	service        ports.ContainerService
	fetcher        ports.MetricsFetcher
	defaultTimeout time.Duration
}

func NewFetchHandler(service ports.ContainerService, fetcher ports.MetricsFetcher, defaultTimeout time.Duration) *FetchHandler {
	return &FetchHandler{service: service, fetcher: fetcher, defaultTimeout: defaultTimeout}
}

// Fetch handles GET /fetch?url=...&timeout=5s&fallback=true and replies with
// the fetched body as is.
func (h *FetchHandler) Fetch(c *fiber.Ctx) error {
	raw := c.Query("url")
	if raw == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter is required",
		})
	}
	ep, err := domain.ParseEndpoint(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	timeout := h.defaultTimeout
	if s := c.Query("timeout"); s != "" {
		timeout, err = time.ParseDuration(s)
		if err != nil || timeout <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "timeout must be a positive duration, e.g. 5s",
			})
		}
	}

	var res domain.Result
	if c.QueryBool("fallback", false) {
		res, err = h.fetcher.FetchWithFallback(c.UserContext(), ep, timeout)
	} else {
		res, err = h.fetcher.Fetch(c.UserContext(), ep, timeout)
	}
	if err != nil {
		return fetchError(c, res, err)
	}

	c.Set("X-Jmxbridge-Source", string(res.Source))
	if res.Route != nil {
		c.Set("X-Jmxbridge-Container", res.Route.ContainerName)
	}
	if trimmed := bytes.TrimSpace(res.Body); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	}
	return c.Status(fiber.StatusOK).Send(res.Body)
}

// ResolveRoute handles GET /routes/:port.
func (h *FetchHandler) ResolveRoute(c *fiber.Ctx) error {
	port, err := strconv.Atoi(c.Params("port"))
	if err != nil || port < 1 || port > 65535 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "port must be between 1 and 65535",
		})
	}
	route, err := h.fetcher.ResolveRoute(c.UserContext(), domain.Endpoint{Scheme: "http", Host: "localhost", Port: port, Path: "/"})
	if err != nil {
		return fetchError(c, domain.Result{}, err)
	}
	return c.JSON(route)
}

// ListRoutes handles GET /routes.
func (h *FetchHandler) ListRoutes(c *fiber.Ctx) error {
	routes, err := h.fetcher.ListRoutes(c.UserContext())
	if err != nil {
		return fetchError(c, domain.Result{}, err)
	}
	if routes == nil {
		routes = []domain.Route{}
	}
	return c.JSON(routes)
}

func (h *FetchHandler) ListContainers(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.UserContext())
	if err != nil {
		return c.Status(statusCode(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if containers == nil {
		containers = []domain.Container{}
	}
	return c.JSON(containers)
}

func (h *FetchHandler) GetContainerLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Container ID is required",
		})
	}

	logs, err := h.service.ContainerLogs(c.UserContext(), id, c.QueryInt("tail", 200))
	if err != nil {
		return c.Status(statusCode(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendStream(logs)
}

// fetchError renders a typed fetch failure. Failures never carry a body.
func fetchError(c *fiber.Ctx, res domain.Result, err error) error {
	status := domain.StatusOf(err)
	body := fiber.Map{
		"error":  err.Error(),
		"status": status.String(),
	}
	if res.Route != nil {
		body["route"] = res.Route
	}
	var execErr *domain.ExecError
	if errors.As(err, &execErr) {
		body["exit_code"] = execErr.ExitCode
		body["stderr"] = string(execErr.Stderr)
	}
	return c.Status(statusCode(err)).JSON(body)
}

func statusCode(err error) int {
	switch domain.StatusOf(err) {
	case domain.StatusRouteNotFound:
		return fiber.StatusNotFound
	case domain.StatusAmbiguousRoute:
		return fiber.StatusConflict
	case domain.StatusFetchTimeout:
		return fiber.StatusGatewayTimeout
	case domain.StatusExecutionFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusServiceUnavailable
	}
}
