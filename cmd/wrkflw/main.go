package main

import (
	"fmt"
	"os"

	"github.com/wrkflw/wrkflw/cmd/wrkflw/cmd"
	"github.com/wrkflw/wrkflw/internal/sentry"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	defer sentry.RecoverAndPanic()
	cleanup := sentry.Init(Version)
	defer cleanup()

	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		sentry.CaptureError(err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
