package sentry

import "testing"

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "macOS home path",
			input:    "/Users/john/code/project",
			expected: "/Users/[user]/code/project",
		},
		{
			name:     "Linux home path",
			input:    "/home/jane/workspace/app",
			expected: "/home/[user]/workspace/app",
		},
		{
			name:     "email address",
			input:    "Contact: john.doe@example.com for help",
			expected: "Contact: [email] for help",
		},
		{
			name:     "no PII present",
			input:    "failed to read file: permission denied",
			expected: "failed to read file: permission denied",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scrubPII(tt.input); got != tt.expected {
				t.Errorf("scrubPII(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInitDisabledWithoutDSN(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("DO_NOT_TRACK", "")
	t.Setenv("WRKFLW_NO_TELEMETRY", "")
	cleanup := Init("test")
	if cleanup == nil {
		t.Fatal("expected a non-nil cleanup func even when disabled")
	}
	cleanup()
}

func TestInitRespectsDoNotTrack(t *testing.T) {
	t.Setenv("DO_NOT_TRACK", "1")
	t.Setenv("SENTRY_DSN", "https://example.invalid/1")
	cleanup := Init("test")
	cleanup()
}
