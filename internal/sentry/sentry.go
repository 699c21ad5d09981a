// Package sentry wires optional crash/error reporting for the wrkflw CLI:
// opt-out by default outside of a configured DSN, PII-scrubbed before
// anything leaves the process.
package sentry

import (
	"context"
	"net/http"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	flushTimeout      = 2 * time.Second
	httpClientTimeout = 10 * time.Second
	maxBreadcrumbs    = 20
)

var (
	homePathPattern = regexp.MustCompile(`(?i)(/home/|/Users/|C:\\Users\\)([^/\\:]+)`)
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
)

// DSN is injected at build time via ldflags for production releases; empty
// by default, which disables reporting entirely.
var DSN string

// Init initializes the Sentry SDK for version, honoring DO_NOT_TRACK and
// WRKFLW_NO_TELEMETRY opt-outs and SENTRY_DSN/SENTRY_ENVIRONMENT overrides.
// Returns a cleanup function to defer.
func Init(version string) func() {
	if os.Getenv("DO_NOT_TRACK") == "1" || os.Getenv("WRKFLW_NO_TELEMETRY") == "1" {
		return func() {}
	}

	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		dsn = DSN
	}
	if dsn == "" {
		return func() {}
	}

	env := os.Getenv("SENTRY_ENVIRONMENT")
	if env == "" {
		env = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "wrkflw@" + version,
		Environment:      env,
		ServerName:       runtime.GOOS + "-" + runtime.GOARCH,
		AttachStacktrace: true,
		SampleRate:       1.0,
		Debug:            env == "development",
		MaxBreadcrumbs:   maxBreadcrumbs,
		HTTPClient:       &http.Client{Timeout: httpClientTimeout},
		IgnoreErrors: []string{
			"context canceled",
			"context deadline exceeded",
			"signal: interrupt",
			"signal: terminated",
			"EOF",
			"broken pipe",
		},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if hint != nil && hint.OriginalException != nil {
				msg := hint.OriginalException.Error()
				if strings.Contains(msg, "interrupt") || strings.Contains(msg, "context canceled") {
					return nil
				}
			}
			scrubEvent(event)
			return event
		},
		BeforeBreadcrumb: func(b *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			b.Message = scrubPII(b.Message)
			return b
		},
	})
	if err != nil {
		return func() {}
	}
	return func() { sentry.Flush(flushTimeout) }
}

// CaptureError reports err if Sentry is initialized; a no-op otherwise.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// RecoverAndPanic recovers a panic, reports it, flushes, then re-panics so
// the CLI still surfaces the panic to the user. Must be deferred before
// Init's cleanup so Flush runs before the re-panic unwinds further.
func RecoverAndPanic() {
	if r := recover(); r != nil {
		sentry.CurrentHub().RecoverWithContext(context.Background(), r)
		sentry.Flush(flushTimeout)
		panic(r)
	}
}

func scrubPII(s string) string {
	s = homePathPattern.ReplaceAllString(s, "${1}[user]")
	s = emailPattern.ReplaceAllString(s, "[email]")
	return s
}

func scrubEvent(event *sentry.Event) {
	event.Message = scrubPII(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
		if event.Exception[i].Stacktrace != nil {
			for j := range event.Exception[i].Stacktrace.Frames {
				frame := &event.Exception[i].Stacktrace.Frames[j]
				frame.AbsPath = scrubPII(frame.AbsPath)
				frame.Filename = scrubPII(frame.Filename)
			}
		}
	}
	for i := range event.Breadcrumbs {
		event.Breadcrumbs[i].Message = scrubPII(event.Breadcrumbs[i].Message)
	}
	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}
}
