package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/florianilch/moonctl/cmd/moonctl/commands"
	"github.com/florianilch/moonctl/internal/apierror"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apierror.UserMessage(err, ""))
		stop()
		os.Exit(1)
	}
}
