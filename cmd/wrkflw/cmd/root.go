// Package cmd implements wrkflw's cobra command tree: a thin layer that
// wires configuration, logging, and the progress reporter around the
// engine packages in internal/.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set by main from a build-time ldflags value.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "wrkflw",
	Short:   "Run GitHub Actions workflows locally",
	Version: Version,
	Long: `wrkflw runs GitHub Actions workflow YAML locally: it parses a workflow
file, expands matrix jobs, schedules jobs in dependency order, and executes
each step against a Docker, Podman, or host-emulation backend.`,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.Version = Version
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(configCmd)
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
