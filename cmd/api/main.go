// Command api runs the guest-count audit HTTP service. It is equivalent to `guestcount serve`
// and exists so the container image has a single-purpose entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/russellmoss/guest-count-check/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version string
	commit  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Build{Version: version, CommitSHA: commit}, os.Stdout)
	root.SetArgs(append([]string{"serve"}, os.Args[1:]...))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}
