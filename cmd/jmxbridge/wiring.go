package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/melih/jmxbridge/internal/adapters/docker"
	"github.com/melih/jmxbridge/internal/adapters/dockercli"
	"github.com/melih/jmxbridge/internal/adapters/hostnet"
	"github.com/melih/jmxbridge/internal/adapters/serial"
	"github.com/melih/jmxbridge/internal/collector"
	"github.com/melih/jmxbridge/internal/config"
	"github.com/melih/jmxbridge/internal/core/domain"
	"github.com/melih/jmxbridge/internal/core/ports"
	"github.com/melih/jmxbridge/internal/core/services/fetcher"
)

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("runtime"); v != "" {
		cfg.Runtime.Mode = v
	}
	if v := c.String("docker-host"); v != "" {
		cfg.Runtime.DockerHost = v
	}
	if v := c.String("tool"); v != "" {
		cfg.Fetch.Tool = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRuntime picks the container runtime backend. The returned close func
// releases the backend's connections and must be called once the command is
// done with it.
func newRuntime(cfg *config.Config) (ports.ContainerService, func(), error) {
	var (
		rt      ports.ContainerService
		closeFn = func() {}
	)
	switch cfg.Runtime.Mode {
	case config.ModeCLI:
		logrus.Debugf("Using docker CLI runtime (%s)", cfg.Runtime.DockerBin)
		rt = dockercli.NewAdapter(cfg.Runtime.DockerBin)
	default:
		logrus.Debug("Using Docker SDK runtime")
		sdk, err := docker.NewAdapter(cfg.Runtime.DockerHost)
		if err != nil {
			return nil, nil, fmt.Errorf("%v: %w", err, domain.ErrRuntimeUnavailable)
		}
		rt = sdk
		closeFn = func() {
			if err := sdk.Close(); err != nil {
				logrus.Debugf("Closing docker client: %v", err)
			}
		}
	}
	if cfg.Runtime.Serialize {
		rt = serial.Wrap(rt)
	}
	return rt, closeFn, nil
}

func newFetcher(cfg *config.Config, rt ports.ContainerService) (*fetcher.Fetcher, error) {
	tool, err := fetcher.ParseTool(cfg.Fetch.Tool)
	if err != nil {
		return nil, err
	}
	return fetcher.New(rt,
		fetcher.WithTool(tool),
		fetcher.WithHostFetcher(hostnet.NewClient(), cfg.Fetch.HostTimeout),
	), nil
}

func collectorTargets(cfg *config.Config) ([]collector.Target, error) {
	targets := make([]collector.Target, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		ep, err := domain.ParseEndpoint(t.URL)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", t.Name, err)
		}
		targets = append(targets, collector.Target{
			Name:     t.Name,
			Endpoint: ep,
			Interval: t.Interval,
			Timeout:  t.Timeout,
			Fallback: t.Fallback,
			Beans:    t.Beans,
		})
	}
	return targets, nil
}

func collectorBackoff(b config.Backoff) collector.Backoff {
	return collector.Backoff{
		Initial:     b.Initial,
		Max:         b.Max,
		Multiplier:  b.Multiplier,
		MaxAttempts: b.MaxAttempts,
	}
}

// exitCode maps a fetch error to the process exit status.
func exitCode(err error) int {
	switch domain.StatusOf(err) {
	case domain.StatusSuccess:
		return 0
	case domain.StatusRouteNotFound, domain.StatusAmbiguousRoute:
		return 2
	case domain.StatusFetchTimeout:
		return 3
	case domain.StatusExecutionFailure:
		return 4
	default:
		return 5
	}
}
