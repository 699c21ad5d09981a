// Package cliutil holds small CLI-only helpers shared by cmd/wrkflw's
// subcommands.
package cliutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on SIGINT or SIGTERM. The
// cancellation stops new jobs and combinations from starting and terminates
// the step processes already running.
func SetupSignalHandler(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-parent.Done():
		}
		signal.Stop(sigCh)
		close(sigCh)
	}()

	return ctx
}
