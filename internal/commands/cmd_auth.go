package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

// ErrNotSignedIn возвращает whoami без действующей сессии.
var ErrNotSignedIn = errors.New("not signed in")

type AuthCmd struct {
	flags *Flags

	// flags
	email      string
	password   string
	fullName   string
	jsonOutput bool
}

// NewAuthCmd создаёт команды входа и выхода.
func NewAuthCmd(flags *Flags) *AuthCmd {
	return &AuthCmd{flags: flags}
}

func (cmd *AuthCmd) credentialFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Usage:       "account email",
			Sources:     cli.EnvVars("SERVICEFLOW_EMAIL"),
			Required:    true,
			Destination: &cmd.email,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "account password",
			Sources:     cli.EnvVars("SERVICEFLOW_PASSWORD"),
			Required:    true,
			Destination: &cmd.password,
		},
	}
}

// Register добавляет login, register, logout и whoami.
func (cmd *AuthCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "login",
			Usage:     "Sign in and store the session token",
			UsageText: "serviceflow login --email EMAIL --password PASSWORD",
			Flags:     cmd.credentialFlags(),
			Action:    cmd.runLogin,
		},
		&cli.Command{
			Name:      "register",
			Usage:     "Create an account and sign in",
			UsageText: "serviceflow register --email EMAIL --password PASSWORD [--name NAME]",
			Flags: append(cmd.credentialFlags(), &cli.StringFlag{
				Name:        "name",
				Usage:       "full name",
				Destination: &cmd.fullName,
			}),
			Action: cmd.runRegister,
		},
		&cli.Command{
			Name:   "logout",
			Usage:  "Sign out and forget the stored token",
			Action: cmd.runLogout,
		},
		&cli.Command{
			Name:  "whoami",
			Usage: "Show the signed-in user",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "output as JSON", Destination: &cmd.jsonOutput},
			},
			Action: cmd.runWhoami,
		},
	)
	return app
}

func (cmd *AuthCmd) runLogin(ctx context.Context, c *cli.Command) error {
	session, err := cmd.flags.session()
	if err != nil {
		return err
	}
	if err := session.SignIn(ctx, cmd.email, cmd.password); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Root().Writer, "Signed in as %s\n", session.User().Email)
	return err
}

func (cmd *AuthCmd) runRegister(ctx context.Context, c *cli.Command) error {
	session, err := cmd.flags.session()
	if err != nil {
		return err
	}
	if err := session.SignUp(ctx, cmd.email, cmd.password, cmd.fullName); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Root().Writer, "Account created, signed in as %s\n", session.User().Email)
	return err
}

func (cmd *AuthCmd) runLogout(ctx context.Context, c *cli.Command) error {
	session, err := cmd.flags.session()
	if err != nil {
		return err
	}
	// Токен уже удалён; ошибка сервера только сообщается.
	if err := session.SignOut(ctx); err != nil {
		return fmt.Errorf("signed out locally, server sign-out failed: %w", err)
	}
	_, err = fmt.Fprintln(c.Root().Writer, "Signed out")
	return err
}

func (cmd *AuthCmd) runWhoami(ctx context.Context, c *cli.Command) error {
	session, err := cmd.flags.session()
	if err != nil {
		return err
	}
	user := session.Restore(ctx)
	if user == nil {
		return ErrNotSignedIn
	}

	out := c.Root().Writer
	if cmd.jsonOutput {
		return writeJSON(out, user)
	}
	if user.FullName != "" {
		_, err = fmt.Fprintf(out, "%s <%s>\n", user.FullName, user.Email)
		return err
	}
	_, err = fmt.Fprintln(out, user.Email)
	return err
}
