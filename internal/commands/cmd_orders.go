package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
	"github.com/vladislavdragonenkov/serviceflow/internal/viewstate"
)

type OrdersCmd struct {
	flags *Flags

	// flags
	status     string
	query      string
	jsonOutput bool
	yes        bool
	form       viewstate.FormInput
}

// NewOrdersCmd создаёт группу команд orders.
func NewOrdersCmd(flags *Flags) *OrdersCmd {
	return &OrdersCmd{flags: flags}
}

// Register добавляет orders и её подкоманды.
func (cmd *OrdersCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "orders",
		Aliases: []string{"o"},
		Usage:   "List, inspect and change service orders",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Aliases:   []string{"ls"},
				Usage:     "List service orders, most recent first",
				UsageText: "serviceflow orders list [--status STATUS] [--query TEXT] [--json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "status",
						Usage:       "all, pending, in_progress, completed or cancelled",
						Value:       viewstate.StatusAll,
						Destination: &cmd.status,
					},
					&cli.StringFlag{
						Name:        "query",
						Aliases:     []string{"q"},
						Usage:       "case-insensitive text in title, client or description",
						Destination: &cmd.query,
					},
					cmd.jsonFlag(),
				},
				Action: cmd.runList,
			},
			{
				Name:      "get",
				Usage:     "Show one service order",
				UsageText: "serviceflow orders get [--json] ID",
				Flags:     []cli.Flag{cmd.jsonFlag()},
				Action:    cmd.runGet,
			},
			{
				Name:      "search",
				Usage:     "Search service orders on the server",
				UsageText: "serviceflow orders search [--json] QUERY",
				Flags:     []cli.Flag{cmd.jsonFlag()},
				Action:    cmd.runSearch,
			},
			{
				Name:      "create",
				Usage:     "Create a service order",
				UsageText: "serviceflow orders create --title T --description D --client C --category C [options]",
				Flags:     append(cmd.formFlags(true), cmd.jsonFlag()),
				Action:    cmd.runCreate,
			},
			{
				Name:      "update",
				Usage:     "Change fields of a service order",
				UsageText: "serviceflow orders update [options] ID",
				Flags:     append(cmd.formFlags(false), cmd.jsonFlag()),
				Action:    cmd.runUpdate,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a service order",
				UsageText: "serviceflow orders delete [--yes] ID",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation", Destination: &cmd.yes},
				},
				Action: cmd.runDelete,
			},
		},
	})
	return app
}

func (cmd *OrdersCmd) jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput}
}

// formFlags описывает поля формы; при создании priority по умолчанию medium.
func (cmd *OrdersCmd) formFlags(create bool) []cli.Flag {
	priority := &cli.StringFlag{Name: "priority", Usage: "low, medium or high", Destination: &cmd.form.Priority}
	if create {
		priority.Value = string(domain.PriorityMedium)
	}

	flags := []cli.Flag{
		&cli.StringFlag{Name: "title", Usage: "short title", Destination: &cmd.form.Title},
		&cli.StringFlag{Name: "description", Usage: "what needs to be done", Destination: &cmd.form.Description},
		&cli.StringFlag{Name: "client", Usage: "client name", Destination: &cmd.form.Client},
		&cli.StringFlag{Name: "category", Usage: "service category", Destination: &cmd.form.Category},
		priority,
		&cli.StringFlag{Name: "technician", Usage: "assigned technician", Destination: &cmd.form.Technician},
		&cli.StringFlag{Name: "due", Usage: "due date, YYYY-MM-DD or RFC 3339", Destination: &cmd.form.DueDate},
		&cli.StringFlag{Name: "hours", Usage: "estimated hours", Destination: &cmd.form.EstimatedHours},
		&cli.StringFlag{Name: "notes", Usage: "free-form notes", Destination: &cmd.form.Notes},
	}
	if !create {
		flags = append(flags, &cli.StringFlag{
			Name:        "status",
			Usage:       "pending, in_progress, completed or cancelled",
			Destination: &cmd.form.Status,
		})
	}
	return flags
}

func (cmd *OrdersCmd) controller(c *cli.Command, opts ...viewstate.Option) *viewstate.Controller {
	opts = append([]viewstate.Option{viewstate.WithNotifier(notifier(c.Root().ErrWriter))}, opts...)
	return viewstate.NewController(cmd.flags.Access, opts...)
}

// loadList загружает заказы и переключает контроллер на список.
func (cmd *OrdersCmd) loadList(ctx context.Context, ctrl *viewstate.Controller) error {
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	ctrl.ShowList()
	return nil
}

func singleArg(c *cli.Command, name string) (string, error) {
	if c.NArg() != 1 || c.Args().First() == "" {
		return "", fmt.Errorf("expected exactly one %s argument", name)
	}
	return c.Args().First(), nil
}

func (cmd *OrdersCmd) runList(ctx context.Context, c *cli.Command) error {
	ctrl := cmd.controller(c)
	if err := ctrl.SetStatusFilter(cmd.status); err != nil {
		return err
	}
	ctrl.SetSearchQuery(cmd.query)
	if err := cmd.loadList(ctx, ctrl); err != nil {
		return err
	}

	visible := ctrl.Visible()
	if cmd.jsonOutput {
		return writeJSON(c.Root().Writer, visible)
	}
	return printOrders(c.Root().Writer, visible)
}

func (cmd *OrdersCmd) runGet(ctx context.Context, c *cli.Command) error {
	id, err := singleArg(c, "ID")
	if err != nil {
		return err
	}
	order, err := cmd.flags.Access.Get(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	return cmd.show(c, *order)
}

func (cmd *OrdersCmd) runSearch(ctx context.Context, c *cli.Command) error {
	query, err := singleArg(c, "QUERY")
	if err != nil {
		return err
	}
	orders, err := cmd.flags.Access.Search(ctx, query)
	if err != nil {
		return err
	}
	if cmd.jsonOutput {
		return writeJSON(c.Root().Writer, orders)
	}
	return printOrders(c.Root().Writer, orders)
}

func (cmd *OrdersCmd) runCreate(ctx context.Context, c *cli.Command) error {
	ctrl := cmd.controller(c)
	if err := ctrl.NewOrder(); err != nil {
		return err
	}
	if err := ctrl.Submit(ctx, cmd.form); err != nil {
		return err
	}

	// Созданный заказ добавляется в начало коллекции.
	state := ctrl.State()
	if len(state.Orders) == 0 {
		return errors.New("created order is missing from the list")
	}
	return cmd.show(c, state.Orders[0])
}

func (cmd *OrdersCmd) runUpdate(ctx context.Context, c *cli.Command) error {
	id, err := singleArg(c, "ID")
	if err != nil {
		return err
	}

	ctrl := cmd.controller(c)
	if err := cmd.loadList(ctx, ctrl); err != nil {
		return err
	}
	if err := ctrl.EditOrder(id); err != nil {
		return fmt.Errorf("%w: %s", err, id)
	}

	form := viewstate.FormFromOrder(*ctrl.Selected())
	overrides := map[string]*string{
		"title":       &form.Title,
		"description": &form.Description,
		"client":      &form.Client,
		"category":    &form.Category,
		"priority":    &form.Priority,
		"technician":  &form.Technician,
		"due":         &form.DueDate,
		"hours":       &form.EstimatedHours,
		"notes":       &form.Notes,
		"status":      &form.Status,
	}
	values := map[string]string{
		"title":       cmd.form.Title,
		"description": cmd.form.Description,
		"client":      cmd.form.Client,
		"category":    cmd.form.Category,
		"priority":    cmd.form.Priority,
		"technician":  cmd.form.Technician,
		"due":         cmd.form.DueDate,
		"hours":       cmd.form.EstimatedHours,
		"notes":       cmd.form.Notes,
		"status":      cmd.form.Status,
	}
	for name, dst := range overrides {
		if c.IsSet(name) {
			*dst = values[name]
		}
	}

	if err := ctrl.Submit(ctx, form); err != nil {
		return err
	}
	return cmd.show(c, *ctrl.Selected())
}

func (cmd *OrdersCmd) runDelete(ctx context.Context, c *cli.Command) error {
	id, err := singleArg(c, "ID")
	if err != nil {
		return err
	}

	root := c.Root()
	confirm := func(o domain.ServiceOrder) bool {
		if cmd.yes {
			return true
		}
		return confirmPrompt(root.Reader, root.ErrWriter, fmt.Sprintf("Delete %q for %s?", o.Title, o.Client))
	}

	ctrl := cmd.controller(c, viewstate.WithConfirm(confirm))
	if err := cmd.loadList(ctx, ctrl); err != nil {
		return err
	}
	if err := ctrl.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return fmt.Errorf("%w: %s", err, id)
		}
		return err
	}
	return nil
}

func (cmd *OrdersCmd) show(c *cli.Command, order domain.ServiceOrder) error {
	if cmd.jsonOutput {
		return writeJSON(c.Root().Writer, order)
	}
	return printOrder(c.Root().Writer, order)
}
