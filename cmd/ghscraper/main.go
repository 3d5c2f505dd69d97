// Command ghscraper queries a running github-scraper server from the terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sakif/github-scraper/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	if err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, msg)
		}
	}
	stop()
	os.Exit(cli.ExitCode(err))
}
