package cliutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSecretsNoPath(t *testing.T) {
	secrets, err := LoadSecrets("")
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if len(secrets) != 0 {
		t.Fatalf("expected no secrets, got %v", secrets)
	}
}

func TestLoadSecretsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	content := "# a comment\nTOKEN=abc123\n\nAPI_KEY = with spaces \n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	secrets, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if secrets["TOKEN"] != "abc123" {
		t.Fatalf("expected TOKEN=abc123, got %v", secrets)
	}
	if secrets["API_KEY"] != "with spaces" {
		t.Fatalf("expected trimmed API_KEY, got %q", secrets["API_KEY"])
	}
}

func TestLoadSecretsEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets.env")
	if err := os.WriteFile(path, []byte("TOKEN=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WRKFLW_SECRET_TOKEN", "from-env")

	secrets, err := LoadSecrets(path)
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if secrets["TOKEN"] != "from-env" {
		t.Fatalf("expected env override, got %q", secrets["TOKEN"])
	}
}

func TestLoadSecretsMissingFile(t *testing.T) {
	if _, err := LoadSecrets("/nonexistent/secrets.env"); err == nil {
		t.Fatal("expected an error for a missing secrets file")
	}
}
