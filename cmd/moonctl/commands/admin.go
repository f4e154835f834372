package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/moonctl/internal/app"
	"github.com/florianilch/moonctl/internal/moon"
)

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "limit", Usage: "page size"},
		&cli.StringFlag{Name: "after", Usage: "cursor of the previous page"},
	}
}

func usersCommand() *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Administer user accounts",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List users",
				Flags:  pageFlags(),
				Action: withApp(usersListAction),
			},
			{
				Name:      "get",
				Usage:     "Show a user",
				ArgsUsage: "<id>",
				Action:    withApp(usersGetAction),
			},
			{
				Name:  "create",
				Usage: "Create a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("MOONCTL_NEW_USER_PASSWORD")},
					&cli.StringFlag{Name: "role", Value: "user", Usage: "admin|user"},
				},
				Action: withApp(usersCreateAction),
			},
			{
				Name:      "destroy",
				Usage:     "Delete a user",
				ArgsUsage: "<id>",
				Action:    withApp(usersDestroyAction),
			},
			{
				Name:      "revoke-sessions",
				Usage:     "Sign a user out everywhere",
				ArgsUsage: "<id>",
				Action:    withApp(usersRevokeSessionsAction),
			},
		},
	}
}

func usersListAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	list, err := application.Moon().Users.List(ctx, cmd.Int("limit"), cmd.String("after"))
	if err != nil {
		return err
	}
	return printJSON(cmd, list)
}

func usersGetAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "id")
	if err != nil {
		return err
	}
	user, err := application.Moon().Users.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, user)
}

func usersCreateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	user, err := application.Moon().Users.Create(ctx, moon.CreateUserInput{
		Username: cmd.String("username"),
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
		Role:     cmd.String("role"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, user)
}

func usersDestroyAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "id")
	if err != nil {
		return err
	}
	if err := application.Moon().Users.Destroy(ctx, args[0]); err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"destroyed": args[0]})
}

func usersRevokeSessionsAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "id")
	if err != nil {
		return err
	}
	user, err := application.Moon().Users.RevokeSessions(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, user)
}

func apiKeysCommand() *cli.Command {
	return &cli.Command{
		Name:  "apikeys",
		Usage: "Administer API keys",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List API keys",
				Flags:  pageFlags(),
				Action: withApp(apiKeysListAction),
			},
			{
				Name:      "create",
				Usage:     "Create an API key; the secret is shown once",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "role", Value: "user", Usage: "admin|user"},
					&cli.BoolFlag{Name: "can-write", Usage: "allow write access"},
				},
				Action: withApp(apiKeysCreateAction),
			},
			{
				Name:      "rotate",
				Usage:     "Replace the secret of an API key",
				ArgsUsage: "<id>",
				Action:    withApp(apiKeysRotateAction),
			},
			{
				Name:      "destroy",
				Usage:     "Delete an API key",
				ArgsUsage: "<id>",
				Action:    withApp(apiKeysDestroyAction),
			},
		},
	}
}

func apiKeysListAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	list, err := application.Moon().APIKeys.List(ctx, cmd.Int("limit"), cmd.String("after"))
	if err != nil {
		return err
	}
	return printJSON(cmd, list)
}

func apiKeysCreateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	key, err := application.Moon().APIKeys.Create(ctx, moon.CreateAPIKeyInput{
		Name:        args[0],
		Description: cmd.String("description"),
		Role:        cmd.String("role"),
		CanWrite:    cmd.Bool("can-write"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, key)
}

func apiKeysRotateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "id")
	if err != nil {
		return err
	}
	rotated, err := application.Moon().APIKeys.Rotate(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, rotated)
}

func apiKeysDestroyAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "id")
	if err != nil {
		return err
	}
	if err := application.Moon().APIKeys.Destroy(ctx, args[0]); err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"destroyed": args[0]})
}
