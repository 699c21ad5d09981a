package cliui

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestTermReporterPlainOutputHasNoEscapeCodes(t *testing.T) {
	var buf bytes.Buffer
	r := NewTermReporter(&buf, false)

	r.OnWorkflowStart("ci", 2)
	r.OnJobStart("build", 0, 1)
	r.OnStepStart("build", "checkout")
	r.OnStepComplete("build", "checkout", "success", 10*time.Millisecond)
	r.OnJobComplete("build", "success", 20*time.Millisecond)
	r.OnWorkflowComplete("ci", true, 30*time.Millisecond)

	out := buf.String()
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escape codes in plain mode, got %q", out)
	}
	if !strings.Contains(out, "checkout") {
		t.Fatalf("expected step name in output, got %q", out)
	}
}

func TestTermReporterOnError(t *testing.T) {
	var buf bytes.Buffer
	r := NewTermReporter(&buf, false)
	r.OnError(errText("boom"))
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("expected error text in output, got %q", buf.String())
	}
}

type errText string

func (e errText) Error() string { return string(e) }
