package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"coach-event-generator/internal/cli"
)

// These variables will be set by the build script
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := cli.Execute(ctx, fmt.Sprintf("%s (commit=%s, date=%s)", version, commit, date))

	stop()
	os.Exit(code)
}
