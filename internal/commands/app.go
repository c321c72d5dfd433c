package commands

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/vladislavdragonenkov/serviceflow/internal/client"
)

// NewApp собирает корневую команду со всеми подкомандами.
func NewApp(flags *Flags, version string) *cli.Command {
	app := &cli.Command{
		Name:      "serviceflow",
		Usage:     "Manage service orders from the terminal",
		UsageText: "serviceflow [global options] command [command options]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "api-url",
				Usage:       "ServiceFlow API base URL",
				Sources:     cli.EnvVars("SERVICEFLOW_API_URL"),
				Value:       client.DefaultBaseURL,
				Destination: &flags.APIURL,
			},
			&cli.StringFlag{
				Name:        "backend",
				Usage:       "order backend: http or mock",
				Sources:     cli.EnvVars("SERVICEFLOW_BACKEND"),
				Value:       client.BackendHTTP,
				Destination: &flags.Backend,
			},
			&cli.StringFlag{
				Name:        "credentials",
				Usage:       "path to the stored session token",
				Sources:     cli.EnvVars("SERVICEFLOW_CREDENTIALS"),
				Value:       DefaultCredentialsPath(),
				Destination: &flags.CredentialsPath,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "timeout of a single API request",
				Value:       client.DefaultTimeout,
				Destination: &flags.Timeout,
			},
			&cli.DurationFlag{
				Name:        "mock-latency",
				Usage:       "maximum simulated latency of the mock backend",
				Value:       client.DefaultMockLatency,
				Destination: &flags.MockLatency,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Sources:     cli.EnvVars("SERVICEFLOW_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			level, err := log.ParseLevel(flags.LogLevel)
			if err != nil {
				return ctx, fmt.Errorf("parse log level: %w", err)
			}
			log.SetLevel(level)
			log.SetOutput(c.Root().ErrWriter)

			if err := flags.Setup(time.Now()); err != nil {
				return ctx, fmt.Errorf("setup client: %w", err)
			}
			return ctx, nil
		},
	}

	NewAuthCmd(flags).Register(app)
	NewOrdersCmd(flags).Register(app)
	NewDashboardCmd(flags).Register(app)
	return app
}
