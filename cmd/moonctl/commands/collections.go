package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/moonctl/internal/app"
	"github.com/florianilch/moonctl/internal/moon"
)

func collectionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "collections",
		Aliases: []string{"col"},
		Usage:   "Manage collections",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List collections",
				Action: withApp(collectionsListAction),
			},
			{
				Name:      "get",
				Usage:     "Show a collection",
				ArgsUsage: "<name>",
				Action:    withApp(collectionsGetAction),
			},
			{
				Name:      "create",
				Usage:     "Create a collection",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "column",
						Usage: "column as name:type[:nullable], repeatable",
					},
				},
				Action: withApp(collectionsCreateAction),
			},
			{
				Name:      "destroy",
				Usage:     "Delete a collection and all its records",
				ArgsUsage: "<name>",
				Action:    withApp(collectionsDestroyAction),
			},
			{
				Name:      "schema",
				Usage:     "Show the columns of a collection",
				ArgsUsage: "<name>",
				Action:    withApp(collectionsSchemaAction),
			},
		},
	}
}

func collectionsListAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	collections, err := application.Moon().Collections.List(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, collections)
}

func collectionsGetAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	collection, err := application.Moon().Collections.Get(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, collection)
}

func collectionsCreateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	columns, err := parseColumns(cmd.StringSlice("column"))
	if err != nil {
		return err
	}

	in := moon.CreateCollectionInput{Name: args[0], Columns: columns}
	if err := application.Moon().Collections.Create(ctx, in); err != nil {
		return err
	}
	return printJSON(cmd, in)
}

func collectionsDestroyAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	if err := application.Moon().Collections.Destroy(ctx, args[0]); err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"destroyed": args[0]})
}

func collectionsSchemaAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "name")
	if err != nil {
		return err
	}
	columns, err := application.Moon().Collections.Schema(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, columns)
}

// parseColumns reads column definitions of the form name:type[:nullable].
func parseColumns(defs []string) ([]moon.Column, error) {
	columns := make([]moon.Column, 0, len(defs))
	for _, def := range defs {
		parts := strings.Split(def, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid column %q, expected name:type[:nullable]", def)
		}

		column := moon.Column{Name: parts[0], Type: parts[1]}
		if len(parts) == 3 {
			if parts[2] != "nullable" {
				return nil, fmt.Errorf("invalid column %q, unknown modifier %q", def, parts[2])
			}
			column.Nullable = true
		}
		columns = append(columns, column)
	}
	return columns, nil
}
