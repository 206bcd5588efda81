package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/jmxbridge/internal/collector"
	"github.com/melih/jmxbridge/internal/core/domain"
)

type stubFetcher struct {
	res         domain.Result
	err         error
	gotTimeout  time.Duration
	gotFallback bool
	gotEndpoint domain.Endpoint
}

func (s *stubFetcher) ResolveRoute(ctx context.Context, ep domain.Endpoint) (domain.Route, error) {
	if ep.Port == 9870 {
		return domain.Route{ContainerID: "aaaa", ContainerName: "namenode", HostPort: 9870, ContainerPort: 9870}, nil
	}
	return domain.Route{}, fmt.Errorf("host port %d: %w", ep.Port, domain.ErrRouteNotFound)
}

func (s *stubFetcher) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return []domain.Route{{ContainerID: "aaaa", ContainerName: "namenode", HostPort: 9870, ContainerPort: 9870}}, nil
}

func (s *stubFetcher) Fetch(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error) {
	s.gotEndpoint, s.gotTimeout = ep, timeout
	return s.res, s.err
}

func (s *stubFetcher) FetchWithFallback(ctx context.Context, ep domain.Endpoint, timeout time.Duration) (domain.Result, error) {
	s.gotFallback = true
	return s.Fetch(ctx, ep, timeout)
}

type stubService struct {
	containers []domain.Container
	err        error
}

func (s *stubService) ListContainers(ctx context.Context) ([]domain.Container, error) {
	return s.containers, s.err
}

func (s *stubService) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	return domain.ExecResult{}, nil
}

func (s *stubService) ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte(fmt.Sprintf("logs of %s, tail %d\n", id, tail)))), nil
}

func newTestApp(f *stubFetcher, s *stubService) *fiber.App {
	h := NewFetchHandler(s, f, 7*time.Second)
	states := func() []collector.TargetState {
		return []collector.TargetState{{Name: "namenode", LastStatus: "success"}}
	}
	return NewApp(h, prometheus.NewRegistry(), states)
}

func do(t *testing.T, app *fiber.App, target string) (int, string, map[string]string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	headers := map[string]string{
		"Content-Type":          resp.Header.Get("Content-Type"),
		"X-Jmxbridge-Source":    resp.Header.Get("X-Jmxbridge-Source"),
		"X-Jmxbridge-Container": resp.Header.Get("X-Jmxbridge-Container"),
	}
	return resp.StatusCode, string(body), headers
}

func TestFetchEndpoint(t *testing.T) {
	route := &domain.Route{ContainerID: "aaaa", ContainerName: "namenode", HostPort: 9870, ContainerPort: 9870}

	t.Run("success returns the body as is", func(t *testing.T) {
		f := &stubFetcher{res: domain.Result{Body: []byte(`{"beans":[]}`), Status: domain.StatusSuccess, Source: domain.SourceContainer, Route: route}}
		code, body, headers := do(t, newTestApp(f, &stubService{}), "/api/v1/fetch?url=http://localhost:9870/jmx")

		assert.Equal(t, 200, code)
		assert.Equal(t, `{"beans":[]}`, body)
		assert.Contains(t, headers["Content-Type"], "application/json")
		assert.Equal(t, "container", headers["X-Jmxbridge-Source"])
		assert.Equal(t, "namenode", headers["X-Jmxbridge-Container"])
		assert.Equal(t, 7*time.Second, f.gotTimeout)
		assert.Equal(t, 9870, f.gotEndpoint.Port)
		assert.False(t, f.gotFallback)
	})

	t.Run("timeout and fallback parameters", func(t *testing.T) {
		f := &stubFetcher{res: domain.Result{Body: []byte("ok"), Status: domain.StatusSuccess, Source: domain.SourceHost}}
		code, _, headers := do(t, newTestApp(f, &stubService{}), "/api/v1/fetch?url=http://localhost:9870/jmx&timeout=1500ms&fallback=true")

		assert.Equal(t, 200, code)
		assert.Equal(t, 1500*time.Millisecond, f.gotTimeout)
		assert.True(t, f.gotFallback)
		assert.Equal(t, "host", headers["X-Jmxbridge-Source"])
		assert.Contains(t, headers["Content-Type"], "text/plain")
	})

	t.Run("bad input", func(t *testing.T) {
		app := newTestApp(&stubFetcher{}, &stubService{})
		for _, target := range []string{
			"/api/v1/fetch",
			"/api/v1/fetch?url=ftp://localhost:9870/jmx",
			"/api/v1/fetch?url=http://localhost:9870/jmx&timeout=soon",
			"/api/v1/fetch?url=http://localhost:9870/jmx&timeout=-1s",
		} {
			code, _, _ := do(t, app, target)
			assert.Equal(t, 400, code, target)
		}
	})

	errorCases := []struct {
		err        error
		wantCode   int
		wantStatus string
	}{
		{fmt.Errorf("host port 9999: %w", domain.ErrRouteNotFound), 404, "route_not_found"},
		{fmt.Errorf("host port 9870: %w", domain.ErrAmbiguousRoute), 409, "ambiguous_route"},
		{fmt.Errorf("x: %w", domain.ErrFetchTimeout), 504, "fetch_timeout"},
		{&domain.ExecError{ContainerID: "aaaa", ExitCode: 22, Stderr: []byte("404")}, 502, "execution_failure"},
		{fmt.Errorf("x: %w", domain.ErrRuntimeUnavailable), 503, "runtime_unavailable"},
	}
	for _, tc := range errorCases {
		t.Run(tc.wantStatus, func(t *testing.T) {
			f := &stubFetcher{res: domain.Result{Status: domain.StatusOf(tc.err)}, err: tc.err}
			code, body, _ := do(t, newTestApp(f, &stubService{}), "/api/v1/fetch?url=http://localhost:9870/jmx")

			assert.Equal(t, tc.wantCode, code)
			var got map[string]any
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, tc.wantStatus, got["status"])
			assert.NotEmpty(t, got["error"])
		})
	}

	t.Run("execution failure carries diagnostics", func(t *testing.T) {
		err := &domain.ExecError{ContainerID: "aaaa", ExitCode: 22, Stderr: []byte("curl: (22) 404")}
		f := &stubFetcher{res: domain.Result{Status: domain.StatusExecutionFailure, Route: route}, err: err}
		_, body, _ := do(t, newTestApp(f, &stubService{}), "/api/v1/fetch?url=http://localhost:9870/jmx")

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(body), &got))
		assert.EqualValues(t, 22, got["exit_code"])
		assert.Equal(t, "curl: (22) 404", got["stderr"])
		assert.NotNil(t, got["route"])
	})
}

func TestRouteEndpoints(t *testing.T) {
	app := newTestApp(&stubFetcher{}, &stubService{})

	code, body, _ := do(t, app, "/api/v1/routes/9870")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"container_name":"namenode"`)

	code, _, _ = do(t, app, "/api/v1/routes/9999")
	assert.Equal(t, 404, code)

	code, _, _ = do(t, app, "/api/v1/routes/notaport")
	assert.Equal(t, 400, code)

	code, body, _ = do(t, app, "/api/v1/routes")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"host_port":9870`)
}

func TestContainerEndpoints(t *testing.T) {
	svc := &stubService{containers: []domain.Container{{ID: "aaaa", Name: "namenode", State: "running"}}}
	app := newTestApp(&stubFetcher{}, svc)

	code, body, _ := do(t, app, "/api/v1/containers")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"name":"namenode"`)

	code, body, _ = do(t, app, "/api/v1/containers/aaaa/logs?tail=5")
	assert.Equal(t, 200, code)
	assert.Equal(t, "logs of aaaa, tail 5\n", body)

	down := newTestApp(&stubFetcher{}, &stubService{err: fmt.Errorf("x: %w", domain.ErrRuntimeUnavailable)})
	code, _, _ = do(t, down, "/api/v1/containers")
	assert.Equal(t, 503, code)
}

func TestMiscEndpoints(t *testing.T) {
	app := newTestApp(&stubFetcher{}, &stubService{})

	code, body, _ := do(t, app, "/healthz")
	assert.Equal(t, 200, code)
	assert.Equal(t, "ok", body)

	code, body, _ = do(t, app, "/api/v1/targets")
	assert.Equal(t, 200, code)
	assert.Contains(t, body, `"last_status":"success"`)

	code, _, _ = do(t, app, "/metrics")
	assert.Equal(t, 200, code)
}
