package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// TermReporter is a progress.Reporter that writes styled, line-oriented
// status to an io.Writer (ordinarily os.Stderr), using direct fmt.Fprintf
// status lines rather than a TUI framework for non-interactive runs.
type TermReporter struct {
	Out io.Writer
	pal palette

	mu sync.Mutex
}

// NewTermReporter builds a reporter writing to out. color should reflect
// whether out is an interactive terminal (e.g. via mattn/go-isatty);
// passing false renders plain ASCII status lines instead of ANSI color.
func NewTermReporter(out io.Writer, color bool) *TermReporter {
	return &TermReporter{Out: out, pal: newPalette(out, color)}
}

func (r *TermReporter) OnWorkflowStart(name string, jobCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "%s %s %s %d jobs\n", r.pal.accent.Render("▶"), r.pal.primary.Render(name), r.pal.bullet(), jobCount)
}

func (r *TermReporter) OnWorkflowComplete(name string, success bool, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conclusion := "success"
	if !success {
		conclusion = "failure"
	}
	fmt.Fprintf(r.Out, "%s %s %s %s\n", r.pal.statusIcon(conclusion), r.pal.primary.Render(name), r.pal.bullet(), duration.Round(time.Millisecond))
}

func (r *TermReporter) OnJobStart(jobID string, combination, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if total > 1 {
		fmt.Fprintf(r.Out, "  %s job %s %s combination %d/%d\n", r.pal.accent.Render("▶"), jobID, r.pal.bullet(), combination+1, total)
		return
	}
	fmt.Fprintf(r.Out, "  %s job %s\n", r.pal.accent.Render("▶"), jobID)
}

func (r *TermReporter) OnJobComplete(jobID, conclusion string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "  %s job %s %s %s\n", r.pal.statusIcon(conclusion), jobID, r.pal.bullet(), duration.Round(time.Millisecond))
}

func (r *TermReporter) OnStepStart(jobID, stepName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "    %s %s\n", r.pal.muted.Render("→"), stepName)
}

func (r *TermReporter) OnStepOutput(jobID, stepName, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "      %s\n", line)
}

func (r *TermReporter) OnStepComplete(jobID, stepName, outcome string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "    %s %s %s %s\n", r.pal.statusIcon(outcome), stepName, r.pal.bullet(), duration.Round(time.Millisecond))
}

func (r *TermReporter) OnError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.Out, "%s %s\n", r.pal.errorS.Render("✗"), err.Error())
}
