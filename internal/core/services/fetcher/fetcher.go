// Package fetcher reads HTTP resources served inside containers by running the
// request in the container's own network namespace, instead of going through
// the host-mapped port.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/melih/jmxbridge/internal/core/domain"
	"github.com/melih/jmxbridge/internal/core/ports"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultHostTimeout = 2 * time.Second
)

// Fetcher implements ports.MetricsFetcher on top of a ContainerService.
// It keeps no state between calls, so one Fetcher can serve concurrent callers.
type Fetcher struct {
	runtime     ports.ContainerService
	host        ports.HostFetcher
	tool        Tool
	hostTimeout time.Duration
	log         logrus.FieldLogger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithTool selects the in-container HTTP client.
func WithTool(t Tool) Option {
	return func(f *Fetcher) { f.tool = t }
}

// WithHostFetcher enables FetchWithFallback's direct host attempt.
func WithHostFetcher(h ports.HostFetcher, timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.host = h
		if timeout > 0 {
			f.hostTimeout = timeout
		}
	}
}

// WithLogger sets the logger; the default is the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New creates a Fetcher backed by runtime.
func New(runtime ports.ContainerService, opts ...Option) *Fetcher {
	f := &Fetcher{
		runtime:     runtime,
		tool:        ToolCurl,
		hostTimeout: DefaultHostTimeout,
		log:         logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ResolveRoute finds the single running container publishing ep.Port.
// The container list is read live on every call. Bindings of one container on
// several host IPs count once, provided they lead to the same container port.
func (f *Fetcher) ResolveRoute(ctx context.Context, ep domain.Endpoint) (domain.Route, error) {
	containers, err := f.runtime.ListContainers(ctx)
	if err != nil {
		return domain.Route{}, classifyRuntimeErr(ctx, err)
	}

	var (
		ids    []string
		routes = make(map[string]domain.Route)
	)
	for _, c := range containers {
		for _, p := range c.Ports {
			if !p.Published() || p.HostPort != ep.Port || !strings.EqualFold(p.Protocol, "tcp") {
				continue
			}
			r := domain.Route{
				ContainerID:   c.ID,
				ContainerName: c.Name,
				HostPort:      p.HostPort,
				ContainerPort: p.ContainerPort,
			}
			// The same container usually publishes a port on both 0.0.0.0 and ::.
			prev, seen := routes[c.ID]
			if !seen {
				ids = append(ids, c.ID)
				routes[c.ID] = r
				continue
			}
			if prev.ContainerPort != r.ContainerPort {
				return domain.Route{}, fmt.Errorf("host port %d maps to container ports %d and %d in %s: %w",
					ep.Port, prev.ContainerPort, r.ContainerPort, c.Name, domain.ErrAmbiguousRoute)
			}
		}
	}

	switch len(ids) {
	case 0:
		return domain.Route{}, fmt.Errorf("host port %d: %w", ep.Port, domain.ErrRouteNotFound)
	case 1:
		return routes[ids[0]], nil
	default:
		return domain.Route{}, fmt.Errorf("host port %d claimed by %s: %w",
			ep.Port, strings.Join(ids, ", "), domain.ErrAmbiguousRoute)
	}
}

// ListRoutes returns every published tcp host port with the container behind
// it, sorted by host port. A port claimed by several containers is listed
// once per container.
func (f *Fetcher) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	containers, err := f.runtime.ListContainers(ctx)
	if err != nil {
		return nil, classifyRuntimeErr(ctx, err)
	}

	seen := make(map[domain.Route]bool)
	var routes []domain.Route
	for _, c := range containers {
		for _, p := range c.Ports {
			if !p.Published() || !strings.EqualFold(p.Protocol, "tcp") {
				continue
			}
			r := domain.Route{
				ContainerID:   c.ID,
				ContainerName: c.Name,
				HostPort:      p.HostPort,
				ContainerPort: p.ContainerPort,
			}
			if seen[r] {
				continue
			}
			seen[r] = true
			routes = append(routes, r)
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].HostPort != routes[j].HostPort {
			return routes[i].HostPort < routes[j].HostPort
		}
		return routes[i].ContainerName < routes[j].ContainerName
	})
	return routes, nil
}

// Fetch resolves ep to its container and GETs ep.Path from inside it.
// It never falls back to the host network. timeout bounds both phases; a
// non-positive timeout means DefaultTimeout.
func (f *Fetcher) Fetch(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := domain.Result{Source: domain.SourceContainer, ExitCode: -1}
	fail := func(err error) (domain.Result, error) {
		res.Status = domain.StatusOf(err)
		res.Duration = time.Since(start)
		f.log.WithFields(logrus.Fields{
			"endpoint": ep.String(),
			"status":   res.Status.String(),
			"duration": res.Duration,
		}).Debugf("fetch failed: %v", err)
		return res, err
	}

	route, err := f.ResolveRoute(ctx, ep)
	if err != nil {
		return fail(err)
	}
	res.Route = &route

	cmd := f.tool.Command(ep.ContainerURL(route.ContainerPort), timeout)
	out, err := f.runtime.Exec(ctx, route.ContainerID, cmd)
	if err != nil {
		if ctx.Err() != nil {
			return fail(timeoutErr(ep, timeout))
		}
		if errors.Is(err, domain.ErrRuntimeUnavailable) {
			return fail(err)
		}
		return fail(&domain.ExecError{ContainerID: route.ContainerID, ExitCode: -1, Err: err})
	}
	// A command that finished right at the deadline may have been cut short.
	if ctx.Err() != nil {
		return fail(timeoutErr(ep, timeout))
	}
	res.ExitCode = out.ExitCode
	if f.tool.TimedOut(out.ExitCode) {
		return fail(timeoutErr(ep, timeout))
	}
	if out.ExitCode != 0 {
		return fail(&domain.ExecError{
			ContainerID: route.ContainerID,
			ExitCode:    out.ExitCode,
			Stdout:      out.Stdout,
			Stderr:      out.Stderr,
		})
	}

	res.Status = domain.StatusSuccess
	res.Body = out.Stdout
	res.Duration = time.Since(start)
	f.log.WithFields(logrus.Fields{
		"endpoint":  ep.String(),
		"container": route.ContainerName,
		"bytes":     len(res.Body),
		"duration":  res.Duration,
	}).Debug("fetched via container")
	return res, nil
}

// FetchURL parses raw and fetches it through the container route.
func (f *Fetcher) FetchURL(ctx context.Context, raw string, timeout time.Duration) (domain.Result, error) {
	ep, err := domain.ParseEndpoint(raw)
	if err != nil {
		return domain.Result{}, err
	}
	return f.Fetch(ctx, ep, timeout)
}

// FetchWithFallback tries the host network first with the short host timeout
// and, on any failure, fetches through the container route with the time that
// is left. The whole call stays within timeout.
func (f *Fetcher) FetchWithFallback(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error) {
	if f.host == nil {
		return f.Fetch(ctx, ep, timeout)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	start := time.Now()
	body, err := f.host.Get(ctx, ep.HostURL(), min(f.hostTimeout, timeout))
	if err == nil {
		return domain.Result{
			Body:     body,
			Status:   domain.StatusSuccess,
			Source:   domain.SourceHost,
			Duration: time.Since(start),
		}, nil
	}
	remaining := timeout - time.Since(start)
	if ctx.Err() != nil || remaining <= 0 {
		return domain.Result{Status: domain.StatusFetchTimeout, ExitCode: -1, Duration: time.Since(start)},
			timeoutErr(ep, timeout)
	}

	f.log.WithFields(logrus.Fields{
		"endpoint":  ep.String(),
		"error":     err,
		"remaining": remaining,
	}).Info("host fetch failed, falling back to container route")
	return f.Fetch(ctx, ep, remaining)
}

func timeoutErr(ep domain.Endpoint, timeout time.Duration) error {
	return fmt.Errorf("%s after %s: %w", ep, timeout, domain.ErrFetchTimeout)
}

// classifyRuntimeErr tags an error from the runtime query. Adapters already
// mark connectivity problems; a deadline hit while listing is a timeout.
func classifyRuntimeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("listing containers: %v: %w", err, domain.ErrFetchTimeout)
	}
	if errors.Is(err, domain.ErrRuntimeUnavailable) {
		return err
	}
	return fmt.Errorf("listing containers: %v: %w", err, domain.ErrRuntimeUnavailable)
}
