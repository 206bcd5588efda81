// Package dockercli implements ports.ContainerService by shelling out to the
// docker CLI. It is the fallback when the daemon socket cannot be used from the
// SDK, e.g. a remote context configured only for the CLI.
package dockercli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/sirupsen/logrus"

	"github.com/melih/jmxbridge/internal/core/domain"
)

// Runner executes one command and reports its output and exit status.
// A non-zero exit is reported through exitCode, not err.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)

// Adapter wraps every docker CLI call the fetcher needs
type Adapter struct {
	bin string
	run Runner
}

// NewAdapter creates an adapter invoking bin (default "docker").
func NewAdapter(bin string) *Adapter {
	if bin == "" {
		bin = "docker"
	}
	return &Adapter{bin: bin, run: execRunner}
}

// psLine is one line of `docker ps --format '{{json .}}'`
type psLine struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	Image  string `json:"Image"`
	State  string `json:"State"`
	Status string `json:"Status"`
	Ports  string `json:"Ports"`
}

// ListContainers lists running containers
// Runs: docker ps --no-trunc --format '{{json .}}'
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	out, stderr, code, err := a.run(ctx, a.bin, "ps", "--no-trunc", "--format", "{{json .}}")
	if err != nil {
		return nil, fmt.Errorf("docker ps failed: %v: %w", err, domain.ErrRuntimeUnavailable)
	}
	if code != 0 {
		return nil, daemonErr("docker ps failed", stderr)
	}

	var containers []domain.Container
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var l psLine
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			logrus.Warnf("[DockerCLI] Failed to parse docker ps line: %s", line)
			continue // Skip bad lines
		}
		ports, err := ParsePorts(l.Ports)
		if err != nil {
			logrus.Warnf("[DockerCLI] Failed to parse ports of %s: %v", l.Names, err)
		}
		containers = append(containers, domain.Container{
			ID:     l.ID,
			Name:   firstName(l.Names),
			Image:  l.Image,
			State:  l.State,
			Status: l.Status,
			Ports:  ports,
		})
	}
	return containers, nil
}

// Exec runs cmd in the container.
// Runs: docker exec <id> <cmd...>
func (a *Adapter) Exec(ctx context.Context, id string, cmd []string) (domain.ExecResult, error) {
	args := append([]string{"exec", id}, cmd...)
	logrus.Debugf("[DockerCLI] docker %s", strings.Join(args, " "))

	stdout, stderr, code, err := a.run(ctx, a.bin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ExecResult{}, err
		}
		return domain.ExecResult{}, fmt.Errorf("docker exec failed: %v: %w", err, domain.ErrRuntimeUnavailable)
	}
	// docker itself reports failures on stderr; the command's own failures
	// never carry the daemon prefixes.
	if code != 0 && isDaemonMessage(stderr) {
		return domain.ExecResult{}, daemonErr("docker exec failed", stderr)
	}
	return domain.ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: code}, nil
}

// ContainerLogs returns the last tail log lines.
// Runs: docker logs --timestamps --tail <n> <id>
func (a *Adapter) ContainerLogs(ctx context.Context, id string, tail int) (io.ReadCloser, error) {
	n := "all"
	if tail > 0 {
		n = strconv.Itoa(tail)
	}
	stdout, stderr, code, err := a.run(ctx, a.bin, "logs", "--timestamps", "--tail", n, id)
	if err != nil {
		return nil, fmt.Errorf("docker logs failed: %v: %w", err, domain.ErrRuntimeUnavailable)
	}
	if code != 0 {
		return nil, daemonErr("docker logs failed", stderr)
	}
	// docker logs replays the container's stderr on our stderr.
	return io.NopCloser(bytes.NewReader(append(stdout, stderr...))), nil
}

// ParsePorts parses the Ports column of docker ps, e.g.
// "0.0.0.0:9870->9870/tcp, :::9870->9870/tcp, 8020/tcp".
// Exposed but unpublished ports are skipped.
func ParsePorts(s string) ([]domain.PortBinding, error) {
	var (
		bindings []domain.PortBinding
		errs     []error
	)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		hostSide, ctrSide, ok := strings.Cut(part, "->")
		if !ok {
			continue
		}
		idx := strings.LastIndex(hostSide, ":")
		if idx < 0 {
			errs = append(errs, fmt.Errorf("malformed port mapping %q", part))
			continue
		}
		hostIP := strings.Trim(hostSide[:idx], "[]")

		// Hand nat the IP-less form; it expands ranges like 9000-9001:9000-9001/tcp.
		mappings, err := nat.ParsePortSpec(hostSide[idx+1:] + ":" + ctrSide)
		if err != nil {
			errs = append(errs, fmt.Errorf("port mapping %q: %w", part, err))
			continue
		}
		for _, m := range mappings {
			hostPort, err := strconv.Atoi(m.Binding.HostPort)
			if err != nil {
				errs = append(errs, fmt.Errorf("port mapping %q: %w", part, err))
				continue
			}
			bindings = append(bindings, domain.PortBinding{
				HostIP:        hostIP,
				HostPort:      hostPort,
				ContainerPort: m.Port.Int(),
				Protocol:      m.Port.Proto(),
			})
		}
	}
	return bindings, errors.Join(errs...)
}

func firstName(names string) string {
	name, _, _ := strings.Cut(names, ",")
	return strings.TrimPrefix(strings.TrimSpace(name), "/")
}

func isDaemonMessage(stderr []byte) bool {
	s := string(stderr)
	return strings.Contains(s, "Error response from daemon") ||
		strings.Contains(s, "Cannot connect to the Docker daemon") ||
		strings.Contains(s, "error during connect")
}

// daemonErr builds an error from docker's stderr, tagging connectivity problems.
func daemonErr(msg string, stderr []byte) error {
	text := strings.TrimSpace(string(stderr))
	if strings.Contains(text, "Cannot connect to the Docker daemon") || strings.Contains(text, "error during connect") {
		return fmt.Errorf("%s: %s: %w", msg, text, domain.ErrRuntimeUnavailable)
	}
	return fmt.Errorf("%s: %s", msg, text)
}

// execRunner runs the command with exec.CommandContext, so cancelling ctx
// kills the docker client process.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, nil, -1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	if err != nil {
		return nil, nil, -1, fmt.Errorf("%q failed: %w", name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
