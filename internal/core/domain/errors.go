package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRouteNotFound: no running container publishes the requested host port.
	ErrRouteNotFound = errors.New("no running container publishes this port")
	// ErrAmbiguousRoute: more than one container claims the host port.
	ErrAmbiguousRoute = errors.New("more than one container publishes this port")
	// ErrFetchTimeout: the fetch did not finish within its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")
	// ErrExecutionFailure: the in-container command ran and failed.
	ErrExecutionFailure = errors.New("in-container fetch failed")
	// ErrRuntimeUnavailable: the container runtime itself could not be reached.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
)

// ExecError carries the diagnostics of a failed in-container command.
// ExitCode is -1 when the command never ran (e.g. the container is gone).
type ExecError struct {
	ContainerID string
	ExitCode    int
	Stdout      []byte
	Stderr      []byte
	Err         error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("in-container fetch in %s exited with code %d", shortID(e.ContainerID), e.ExitCode)
	if e.ExitCode < 0 {
		msg = fmt.Sprintf("in-container fetch in %s could not run", shortID(e.ContainerID))
	}
	if s := strings.TrimSpace(string(e.Stderr)); s != "" {
		msg += ": " + s
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecError) Is(target error) bool {
	return target == ErrExecutionFailure
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
