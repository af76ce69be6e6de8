package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/runctl/runctl/internal/build"
	"github.com/runctl/runctl/internal/cmd/root"
	"github.com/runctl/runctl/internal/iostreams"
)

// Injected at build time through -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func registerSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		sig := <-sigs
		fmt.Fprintln(os.Stderr, "received", sig, ", terminating...")
		cancel()

		// A second signal skips the graceful sweep. Supervised programs
		// that ignore SIGTERM would otherwise pin the shutdown until the
		// stop timeout expires.
		sig = <-sigs
		fmt.Fprintln(os.Stderr, "received", sig, ", exiting immediately")
		os.Exit(1)
	}()
	return ctx
}

func main() {
	ctx := registerSignalHandler()
	root.Execute(ctx, iostreams.GetOSIOStreams(), &build.Info{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
}
