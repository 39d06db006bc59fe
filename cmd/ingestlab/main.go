// Command ingestlab turns crawled HTML documents into structured rows using a
// declarative rule document.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/ingestlab/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil && cli.GetExitCode(err) == cli.ExitCommandError {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
