package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/moonctl/internal/app"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the session of a connection",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with username and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "account username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "account password (prompted when omitted)",
						Sources: cli.EnvVars("MOONCTL_PASSWORD"),
					},
				},
				Action: withApp(authLoginAction),
			},
			{
				Name:   "logout",
				Usage:  "Revoke the session and remove stored credentials",
				Action: withApp(authLogoutAction),
			},
			{
				Name:   "status",
				Usage:  "Show the stored session",
				Action: withApp(authStatusAction),
			},
			{
				Name:   "whoami",
				Usage:  "Show the signed-in user",
				Action: withApp(authWhoamiAction),
			},
		},
	}
}

func authLoginAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	password := cmd.String("password")
	if password == "" {
		var err error
		if password, err = readPassword(os.Stdin, os.Stderr); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
	}

	creds, err := application.Moon().Auth.Login(ctx, cmd.String("username"), password)
	if err != nil {
		return err
	}

	result := struct {
		LoggedIn  bool       `json:"logged_in"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}{LoggedIn: true}
	if !creds.ExpiresAt.IsZero() {
		result.ExpiresAt = &creds.ExpiresAt
	}
	return printJSON(cmd, result)
}

func authLogoutAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	if err := application.Moon().Auth.Logout(ctx); err != nil {
		return err
	}
	return printJSON(cmd, map[string]bool{"logged_in": false})
}

func authStatusAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	status, err := application.Session().Status(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, status)
}

func authWhoamiAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	user, err := application.Moon().Auth.Me(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, user)
}

// readPassword prompts on a terminal without echo, otherwise it reads one line from in.
func readPassword(in *os.File, prompt io.Writer) (string, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		password, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return string(password), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
