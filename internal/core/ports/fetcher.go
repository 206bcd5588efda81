package ports

import (
	"context"
	"time"

	"github.com/melih/jmxbridge/internal/core/domain"
)

// HostFetcher performs a plain GET over the host network stack.
type HostFetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// MetricsFetcher retrieves an endpoint's body. Implementations decide how to obtain it.
type MetricsFetcher interface {
	ResolveRoute(ctx context.Context, ep domain.Endpoint) (domain.Route, error)
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	Fetch(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error)
	FetchWithFallback(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error)
}
