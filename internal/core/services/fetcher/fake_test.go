package fetcher

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/melih/jmxbridge/internal/core/domain"
)

// fakeRuntime is an in-memory ports.ContainerService.
type fakeRuntime struct {
	mu         sync.Mutex
	containers []domain.Container
	listErr    error

	// execFn answers Exec; nil returns an empty successful result.
	execFn    func(ctx context.Context, id string, cmd []string) (domain.ExecResult, error)
	execCalls atomic.Int32
	listCalls atomic.Int32
	lastCmd   []string
}

func (f *fakeRuntime) ListContainers(ctx context.Context) ([]domain.Container, error) {
	f.listCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Container, len(f.containers))
	copy(out, f.containers)
	return out, nil
}

func (f *fakeRuntime) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	f.execCalls.Add(1)
	f.mu.Lock()
	f.lastCmd = cmd
	fn := f.execFn
	f.mu.Unlock()
	if fn == nil {
		return domain.ExecResult{}, nil
	}
	return fn(ctx, id, cmd)
}

func (f *fakeRuntime) ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeRuntime) setContainers(cs ...domain.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers = cs
}

// blockingExec waits for ctx to end, like a target that never answers.
func blockingExec(ctx context.Context, _ string, _ []string) (domain.ExecResult, error) {
	<-ctx.Done()
	return domain.ExecResult{}, ctx.Err()
}

// slowExec answers body after delay unless ctx ends first.
func slowExec(delay time.Duration, body string) func(context.Context, string, []string) (domain.ExecResult, error) {
	return func(ctx context.Context, _ string, _ []string) (domain.ExecResult, error) {
		select {
		case <-time.After(delay):
			return domain.ExecResult{Stdout: []byte(body)}, nil
		case <-ctx.Done():
			return domain.ExecResult{}, ctx.Err()
		}
	}
}

func namenode() domain.Container {
	return domain.Container{
		ID:    "aaaaaaaaaaaa1111",
		Name:  "namenode",
		State: "running",
		Ports: []domain.PortBinding{
			{HostIP: "0.0.0.0", HostPort: 9870, ContainerPort: 9870, Protocol: "tcp"},
			{HostIP: "::", HostPort: 9870, ContainerPort: 9870, Protocol: "tcp"},
			{HostIP: "0.0.0.0", HostPort: 9000, ContainerPort: 8020, Protocol: "tcp"},
			{ContainerPort: 50070, Protocol: "tcp"}, // exposed, not published
		},
	}
}

func datanode() domain.Container {
	return domain.Container{
		ID:    "bbbbbbbbbbbb2222",
		Name:  "datanode",
		State: "running",
		Ports: []domain.PortBinding{
			{HostIP: "0.0.0.0", HostPort: 9864, ContainerPort: 9864, Protocol: "tcp"},
			{HostIP: "0.0.0.0", HostPort: 9866, ContainerPort: 9866, Protocol: "udp"},
		},
	}
}

// fakeHost is a ports.HostFetcher with a canned answer. A non-zero delay is
// spent before answering, cut short by the timeout it is given.
type fakeHost struct {
	body    []byte
	err     error
	delay   time.Duration
	calls   atomic.Int32
	url     atomic.Value
	timeout atomic.Int64
}

func (h *fakeHost) Get(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	h.calls.Add(1)
	h.url.Store(url)
	h.timeout.Store(int64(timeout))
	if h.delay > 0 {
		time.Sleep(min(h.delay, timeout))
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.body, nil
}
