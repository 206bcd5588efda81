package hostnet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Client implements ports.HostFetcher with fiber's fasthttp-backed Agent.
type Client struct{}

// NewClient creates a host-network client.
func NewClient() *Client {
	return &Client{}
}

// Get performs a GET over the host network stack. Any transport error or
// non-2xx status is an error. The request is bounded by timeout and by ctx's
// deadline, whichever comes first.
func (c *Client) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeout <= 0 || left < timeout {
			timeout = left
		}
	}

	a := fiber.AcquireAgent()
	req := a.Request()
	req.Header.SetMethod(fiber.MethodGet)
	req.SetRequestURI(url)
	if timeout > 0 {
		a.Timeout(timeout)
	}
	if err := a.Parse(); err != nil {
		fiber.ReleaseAgent(a)
		return nil, fmt.Errorf("invalid url %q: %w", url, err)
	}

	// Bytes releases the agent.
	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("GET %s: %w", url, errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, code)
	}
	return body, nil
}
