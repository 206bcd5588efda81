package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	httpadapter "github.com/melih/jmxbridge/internal/adapters/http"
	"github.com/melih/jmxbridge/internal/collector"
	"github.com/melih/jmxbridge/internal/core/domain"
)

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a URL from inside the container that publishes its port",
		ArgsUsage: "URL (e.g. http://localhost:9870/jmx)",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Maximum time for route resolution and the in-container fetch",
			},
			&cli.BoolFlag{
				Name:  "fallback",
				Usage: "Try the host network first and use the container route only if that fails",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("fetch takes exactly one URL", 1)
			}
			ep, err := domain.ParseEndpoint(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			rt, closeRuntime, err := newRuntime(cfg)
			if err != nil {
				return cli.Exit(err.Error(), exitCode(err))
			}
			defer closeRuntime()
			f, err := newFetcher(cfg, rt)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			timeout := c.Duration("timeout")
			if timeout <= 0 {
				timeout = cfg.Fetch.Timeout
			}

			var res domain.Result
			if c.Bool("fallback") {
				res, err = f.FetchWithFallback(c.Context, ep, timeout)
			} else {
				res, err = f.Fetch(c.Context, ep, timeout)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("%s: %v", domain.StatusOf(err), err), exitCode(err))
			}

			entry := logrus.WithFields(logrus.Fields{
				"source":   res.Source,
				"bytes":    len(res.Body),
				"duration": res.Duration,
			})
			if res.Route != nil {
				entry = entry.WithField("container", res.Route.ContainerName)
			}
			entry.Debug("fetch ok")

			_, err = os.Stdout.Write(res.Body)
			return err
		},
	}
}

func routesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "List published tcp host ports and the containers serving them",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print JSON instead of a table",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			rt, closeRuntime, err := newRuntime(cfg)
			if err != nil {
				return cli.Exit(err.Error(), exitCode(err))
			}
			defer closeRuntime()
			f, err := newFetcher(cfg, rt)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			ctx, cancel := context.WithTimeout(c.Context, cfg.Fetch.Timeout)
			defer cancel()
			routes, err := f.ListRoutes(ctx)
			if err != nil {
				return cli.Exit(err.Error(), exitCode(err))
			}

			if c.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(routes)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOST PORT\tCONTAINER\tCONTAINER PORT\tID")
			for _, r := range routes {
				id := r.ContainerID
				if len(id) > 12 {
					id = id[:12]
				}
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", r.HostPort, r.ContainerName, r.ContainerPort, id)
			}
			return w.Flush()
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the fetch API and poll the configured targets",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "HTTP listen address (overrides the config file)",
				EnvVars: []string{"JMXBRIDGE_LISTEN"},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if v := c.String("listen"); v != "" {
				cfg.Listen = v
			}

			rt, closeRuntime, err := newRuntime(cfg)
			if err != nil {
				return cli.Exit(err.Error(), exitCode(err))
			}
			defer closeRuntime()
			f, err := newFetcher(cfg, rt)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			targets, err := collectorTargets(cfg)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := collector.NewMetrics(reg)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			coll := collector.New(f, targets, collectorBackoff(cfg.Backoff), metrics, logrus.StandardLogger())
			coll.Start(ctx)
			logrus.Infof("Polling %d target(s)", len(targets))

			handler := httpadapter.NewFetchHandler(rt, f, cfg.Fetch.Timeout)
			app := httpadapter.NewApp(handler, reg, coll.States)

			serveErr := make(chan error, 1)
			go func() {
				logrus.Infof("%s listening on %s", c.App.Name, cfg.Listen)
				serveErr <- app.Listen(cfg.Listen)
			}()

			select {
			case err = <-serveErr:
			case <-ctx.Done():
				logrus.Info("Shutting down...")
				err = app.ShutdownWithTimeout(5 * time.Second)
			}
			coll.Stop()
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
}
