// Package serial funnels every call to a ContainerService through one lock,
// for runtimes whose control channel cannot take concurrent requests.
package serial

import (
	"context"
	"io"

	"github.com/melih/jmxbridge/internal/core/domain"
	"github.com/melih/jmxbridge/internal/core/ports"
)

// Service is a ports.ContainerService that runs one call at a time.
type Service struct {
	next ports.ContainerService
	sem  chan struct{}
}

// Wrap returns next guarded by a single-slot semaphore.
func Wrap(next ports.ContainerService) *Service {
	return &Service{next: next, sem: make(chan struct{}, 1)}
}

// acquire waits for the channel, giving up when ctx ends so a queued caller
// still honours its timeout.
func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		return func() { <-s.sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) ListContainers(ctx context.Context) ([]domain.Container, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.next.ListContainers(ctx)
}

func (s *Service) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return domain.ExecResult{}, err
	}
	defer release()
	return s.next.Exec(ctx, id, cmd)
}

// ContainerLogs holds the channel only while the stream is opened.
func (s *Service) ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.next.ContainerLogs(ctx, id, tail)
}
