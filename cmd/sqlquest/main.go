package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"sqlquest/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewLearnerCommand(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		pterm.Error.Println(err)
		stop()
		os.Exit(1)
	}
}
