package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/moonctl/internal/app"
)

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the server is reachable",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, application *app.App) error {
			status, err := application.Moon().Health(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		}),
	}
}

func proxyCommand() *cli.Command {
	return &cli.Command{
		Name:  "proxy",
		Usage: "Local proxy that attaches the session to every request",
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the session proxy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "proxy--host",
						Usage: "proxy host",
						Value: app.DefaultConfigProxyHost,
					},
					&cli.IntFlag{
						Name:  "proxy--port",
						Usage: "proxy port",
						Value: app.DefaultConfigProxyPort,
					},
				},
				Action: withApp(proxyStartAction),
			},
		},
	}
}

func proxyStartAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("proxy failed: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
