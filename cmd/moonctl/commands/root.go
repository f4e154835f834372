package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/moonctl/internal/app"
	"github.com/florianilch/moonctl/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	return rootCommand().Run(ctx, args)
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:  "moonctl",
		Usage: "Command-line client for the Moon API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load environment variables from a dotenv file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "log-exporter",
				Usage: "log exporter (none|stdout|otlp-grpc|otlp-http)",
				Value: string(app.DefaultConfigLogExporter),
			},
			&cli.StringFlag{
				Name:  "connection--name",
				Usage: "connection name, selects the stored session",
				Value: app.DefaultConfigConnectionName,
			},
			&cli.StringFlag{
				Name:  "connection--base-url",
				Usage: "Moon API base URL",
				Value: app.DefaultConfigBaseURL,
			},
			&cli.DurationFlag{
				Name:  "connection--timeout",
				Usage: "timeout of a single request attempt",
				Value: app.DefaultConfigTimeout,
			},
			&cli.IntFlag{
				Name:  "retry--max-attempts",
				Usage: "attempts for transient failures, including the first",
				Value: app.DefaultConfigMaxAttempts,
			},
			&cli.StringFlag{
				Name:  "auth--storage",
				Usage: "session storage (memory|file|env|keyring|redis)",
				Value: string(app.DefaultConfigAuthStorage),
			},
		},
		Before: loadEnvFile,
		Commands: []*cli.Command{
			authCommand(),
			collectionsCommand(),
			recordsCommand(),
			usersCommand(),
			apiKeysCommand(),
			healthCommand(),
			proxyCommand(),
		},
	}
}

func loadEnvFile(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("env-file")
	if path == "" {
		return ctx, nil
	}
	if err := godotenv.Load(path); err != nil {
		return ctx, fmt.Errorf("loading env file: %w", err)
	}
	return ctx, nil
}

// appAction is an action that needs a configured App.
type appAction func(ctx context.Context, cmd *cli.Command, application *app.App) error

// withApp loads the configuration, sets up logging and builds the App
// before running action.
func withApp(action appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Set up observability before creating app
		shutdown, err := observability.Instrument(ctx, cfg.LogLevel, string(cfg.LogFormat), string(cfg.LogExporter))
		if err != nil {
			return fmt.Errorf("failed to set up observability layer: %w", err)
		}
		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				fmt.Fprintln(os.Stderr, "flushing logs:", err)
			}
		}()

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to create app: %w", err)
		}
		defer func() {
			if err := application.Close(); err != nil {
				slog.WarnContext(ctx, "closing session store", "error", err)
			}
		}()

		return action(ctx, cmd, application)
	}
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cli.Command, v any) error {
	return writeJSON(cmd.Root().Writer, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// requireArgs returns the first len(names) positional arguments or a usage error.
func requireArgs(cmd *cli.Command, names ...string) ([]string, error) {
	args := cmd.Args()
	if args.Len() < len(names) {
		return nil, fmt.Errorf("missing argument <%s>, usage: %s <%s>",
			names[args.Len()], cmd.FullName(), strings.Join(names, "> <"))
	}
	return args.Slice()[:len(names)], nil
}
