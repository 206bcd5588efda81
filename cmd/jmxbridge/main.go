package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/melih/jmxbridge/pkg/version"
)

func main() {
	app := &cli.App{
		Name:    version.ProgramName,
		Version: version.Version,
		Usage:   "Fetch JMX/HTTP metrics from inside containers instead of through mapped host ports",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				EnvVars: []string{"JMXBRIDGE_CONFIG"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
				EnvVars: []string{"JMXBRIDGE_DEBUG"},
			},
			&cli.StringFlag{
				Name:    "runtime",
				Usage:   "Container runtime client: sdk (Docker API) or cli (docker binary)",
				EnvVars: []string{"JMXBRIDGE_RUNTIME"},
			},
			&cli.StringFlag{
				Name:    "docker-host",
				Usage:   "Docker daemon address for the sdk runtime (defaults to DOCKER_HOST)",
				EnvVars: []string{"JMXBRIDGE_DOCKER_HOST"},
			},
			&cli.StringFlag{
				Name:    "tool",
				Usage:   "HTTP client used inside the container: curl or wget",
				EnvVars: []string{"JMXBRIDGE_TOOL"},
			},
		},

		Before: func(c *cli.Context) error {
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp: true,
			})
			// stdout carries fetched bodies.
			logrus.SetOutput(os.Stderr)
			if c.Bool("debug") {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},

		Commands: []*cli.Command{
			fetchCommand(),
			routesCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
