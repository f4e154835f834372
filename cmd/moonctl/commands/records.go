package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/moonctl/internal/app"
	"github.com/florianilch/moonctl/internal/moon"
)

func recordsCommand() *cli.Command {
	return &cli.Command{
		Name:    "records",
		Aliases: []string{"rec"},
		Usage:   "Manage records of a collection",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List records",
				ArgsUsage: "<collection>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "q", Usage: "full-text search"},
					&cli.StringFlag{Name: "sort", Usage: "sort fields, prefix - for descending"},
					&cli.IntFlag{Name: "limit", Usage: "page size"},
					&cli.StringFlag{Name: "after", Usage: "cursor of the previous page"},
				},
				Action: withApp(recordsListAction),
			},
			{
				Name:      "get",
				Usage:     "Show a record",
				ArgsUsage: "<collection> <id>",
				Action:    withApp(recordsGetAction),
			},
			{
				Name:      "create",
				Usage:     "Create a record",
				ArgsUsage: "<collection>",
				Flags:     []cli.Flag{dataFlag()},
				Action:    withApp(recordsCreateAction),
			},
			{
				Name:      "update",
				Usage:     "Update fields of a record",
				ArgsUsage: "<collection> <id>",
				Flags:     []cli.Flag{dataFlag()},
				Action:    withApp(recordsUpdateAction),
			},
			{
				Name:      "destroy",
				Usage:     "Delete a record",
				ArgsUsage: "<collection> <id>",
				Action:    withApp(recordsDestroyAction),
			},
		},
	}
}

func dataFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data",
		Aliases:  []string{"d"},
		Usage:    "record fields as a JSON object, - reads stdin",
		Required: true,
	}
}

func recordsListAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "collection")
	if err != nil {
		return err
	}
	list, err := application.Moon().Records.List(ctx, args[0], moon.RecordListParams{
		Q:     cmd.String("q"),
		Sort:  cmd.String("sort"),
		Limit: cmd.Int("limit"),
		After: cmd.String("after"),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, list)
}

func recordsGetAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "collection", "id")
	if err != nil {
		return err
	}
	record, err := application.Moon().Records.Get(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func recordsCreateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "collection")
	if err != nil {
		return err
	}
	data, err := readRecord(cmd.String("data"), os.Stdin)
	if err != nil {
		return err
	}
	record, err := application.Moon().Records.Create(ctx, args[0], data)
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func recordsUpdateAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "collection", "id")
	if err != nil {
		return err
	}
	data, err := readRecord(cmd.String("data"), os.Stdin)
	if err != nil {
		return err
	}
	record, err := application.Moon().Records.Update(ctx, args[0], args[1], data)
	if err != nil {
		return err
	}
	return printJSON(cmd, record)
}

func recordsDestroyAction(ctx context.Context, cmd *cli.Command, application *app.App) error {
	args, err := requireArgs(cmd, "collection", "id")
	if err != nil {
		return err
	}
	if err := application.Moon().Records.Destroy(ctx, args[0], args[1]); err != nil {
		return err
	}
	return printJSON(cmd, map[string]string{"destroyed": args[1]})
}

// readRecord decodes a JSON object given inline, or from stdin when data is "-".
func readRecord(data string, stdin io.Reader) (moon.Record, error) {
	raw := []byte(data)
	if data == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return nil, fmt.Errorf("reading record from stdin: %w", err)
		}
	}

	var record moon.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("record must be a JSON object: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("record must be a JSON object")
	}
	return record, nil
}
