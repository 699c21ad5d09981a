// Package logging configures wrkflw's structured logger: log/slog with a
// JSON handler for machine consumption, and a text handler for interactive
// terminal use.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Format Format
	Level  slog.Level
	Output io.Writer
}

// New builds a logger per opts, defaulting to text output at Info level on
// stderr when fields are left zero.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// WorkflowFields returns the attributes attached to every log line for a
// single run, so job/step logs can be correlated by run ID.
func WorkflowFields(runID, workflowName string) []any {
	return []any{
		slog.String("run_id", runID),
		slog.String("workflow", workflowName),
	}
}
