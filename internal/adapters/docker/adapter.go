package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"

	"github.com/melih/jmxbridge/internal/core/domain"
)

// exitPollInterval is how often Exec re-inspects an exec whose output stream
// has closed but which the daemon still reports as running.
const exitPollInterval = 50 * time.Millisecond

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli *client.Client
}

// NewAdapter creates a new Docker adapter instance. host overrides DOCKER_HOST
// when non-empty.
func NewAdapter(host string) (*Adapter, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// Close releases the underlying client's transport.
func (a *Adapter) Close() error {
	return a.cli.Close()
}

// ListContainers returns the running containers and their published ports
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, wrapErr("failed to list containers", err)
	}

	result := make([]domain.Container, 0, len(containers))
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		ports := make([]domain.PortBinding, 0, len(c.Ports))
		for _, p := range c.Ports {
			ports = append(ports, domain.PortBinding{
				HostIP:        p.IP,
				HostPort:      int(p.PublicPort),
				ContainerPort: int(p.PrivatePort),
				Protocol:      p.Type,
			})
		}

		result = append(result, domain.Container{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
			Ports:  ports,
		})
	}
	return result, nil
}

// Exec runs cmd inside the container and collects its demultiplexed output.
// Cancelling ctx closes the attached stream so the call returns promptly.
func (a *Adapter) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	logrus.Debugf("[Docker] Exec in %s: %s", shortID(id), strings.Join(cmd, " "))

	created, err := a.cli.ContainerExecCreate(ctx, id, types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return domain.ExecResult{}, wrapErr("failed to create exec", err)
	}

	attach, err := a.cli.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return domain.ExecResult{}, wrapErr("failed to attach exec", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- err
	}()

	select {
	case err := <-copied:
		if err != nil {
			return domain.ExecResult{}, fmt.Errorf("failed to read exec output: %w", err)
		}
	case <-ctx.Done():
		// Closing the hijacked connection unblocks StdCopy.
		attach.Close()
		<-copied
		return domain.ExecResult{}, ctx.Err()
	}

	code, err := a.exitCode(ctx, created.ID)
	if err != nil {
		return domain.ExecResult{}, err
	}
	return domain.ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), ExitCode: code}, nil
}

// exitCode waits for the daemon to record the exec as finished.
func (a *Adapter) exitCode(ctx context.Context, execID string) (int, error) {
	for {
		inspect, err := a.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, wrapErr("failed to inspect exec", err)
		}
		if !inspect.Running {
			return inspect.ExitCode, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(exitPollInterval):
		}
	}
}

// ContainerLogs returns the last tail lines of stdout and stderr, demultiplexed
// into a single plain text stream.
func (a *Adapter) ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false,
		Timestamps: true,
		Tail:       "all",
	}
	if tail > 0 {
		options.Tail = strconv.Itoa(tail)
	}
	logs, err := a.cli.ContainerLogs(ctx, id, options)
	if err != nil {
		return nil, wrapErr("failed to read container logs", err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer logs.Close()
		_, err := stdcopy.StdCopy(pw, pw, logs)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// wrapErr tags daemon connectivity failures as domain.ErrRuntimeUnavailable so
// callers can tell them apart from a container that is gone or stopped.
func wrapErr(msg string, err error) error {
	switch {
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%s: %v: %w", msg, err, domain.ErrRuntimeUnavailable)
	case errdefs.IsNotFound(err), errdefs.IsConflict(err):
		// No such container, or container not running.
		return fmt.Errorf("%s: %w", msg, err)
	case errdefs.IsUnavailable(err), errdefs.IsSystem(err):
		return fmt.Errorf("%s: %v: %w", msg, err, domain.ErrRuntimeUnavailable)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
