// Command guestcount is the operator CLI: serve the API, check the upstream credentials, or
// print a report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/russellmoss/guest-count-check/internal/cli"
)

var (
	version string
	commit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Build{Version: version, CommitSHA: commit}, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "guestcount: %v\n", err)
		os.Exit(1)
	}
}
