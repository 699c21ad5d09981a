package step

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseKeyValueFileSimpleAndMultiline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GITHUB_OUTPUT")
	content := "name=value\nbody<<EOF\nline one\nline two\nEOF\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := parseKeyValueFile(path)
	if err != nil {
		t.Fatalf("parseKeyValueFile: %v", err)
	}
	if got["name"] != "value" {
		t.Fatalf("name: got %q", got["name"])
	}
	if got["body"] != "line one\nline two" {
		t.Fatalf("body: got %q", got["body"])
	}
}

func TestParseKeyValueFileMissingIsEmpty(t *testing.T) {
	got, err := parseKeyValueFile(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("parseKeyValueFile: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %+v", got)
	}
}

func TestParseLinesForPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "GITHUB_PATH")
	if err := os.WriteFile(path, []byte("/opt/tool/bin\n/usr/local/other\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := parseLines(path)
	if err != nil {
		t.Fatalf("parseLines: %v", err)
	}
	if len(got) != 2 || got[0] != "/opt/tool/bin" || got[1] != "/usr/local/other" {
		t.Fatalf("got %+v", got)
	}
}

func TestNewEnvFilesTruncatesExisting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "step0")
	first, err := NewEnvFiles(dir)
	if err != nil {
		t.Fatalf("NewEnvFiles: %v", err)
	}
	if err := os.WriteFile(first.OutputPath, []byte("stale=1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	files, err := NewEnvFiles(dir)
	if err != nil {
		t.Fatalf("NewEnvFiles (second): %v", err)
	}
	data, err := os.ReadFile(files.OutputPath) //nolint:gosec
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected truncated file, got %q", data)
	}
}
