// Copyright © NGRSoftlab 2020-2025

// sftp-copy is a copy script for script plugins: it uploads FILE_COPY_FILE to
// NODE_HOSTNAME over sftp and prints the remote path on stdout
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Getenv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
