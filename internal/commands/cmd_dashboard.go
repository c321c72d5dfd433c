package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/vladislavdragonenkov/serviceflow/internal/viewstate"
)

type DashboardCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewDashboardCmd создаёт команду dashboard.
func NewDashboardCmd(flags *Flags) *DashboardCmd {
	return &DashboardCmd{flags: flags}
}

// Register добавляет dashboard.
func (cmd *DashboardCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "dashboard",
		Usage: "Show order totals, completion rate and recent orders",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *DashboardCmd) run(ctx context.Context, c *cli.Command) error {
	ctrl := viewstate.NewController(cmd.flags.Access, viewstate.WithNotifier(notifier(c.Root().ErrWriter)))
	if err := ctrl.Load(ctx); err != nil {
		return err
	}

	dashboard := ctrl.Dashboard()
	if cmd.jsonOutput {
		return writeJSON(c.Root().Writer, dashboard)
	}
	return printDashboard(c.Root().Writer, dashboard)
}
