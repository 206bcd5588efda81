package ports

import (
	"context"
	"io"

	"github.com/melih/jmxbridge/internal/core/domain"
)

// ContainerService defines the runtime operations the fetcher depends on.
// This interface allows us to switch between the Docker SDK and the docker CLI
// (or a fake in tests) without changing the fetch logic.
type ContainerService interface {
	// ListContainers returns the running containers with their published ports.
	// It must be a side-effect free, live read.
	ListContainers(ctx context.Context) ([]domain.Container, error)
	// Exec runs cmd inside the container and returns its stdout, stderr and exit code.
	// A non-zero exit code is not an error; failing to run the command at all is.
	Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error)
	// ContainerLogs returns the last tail lines of the container's logs.
	ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error)
}
