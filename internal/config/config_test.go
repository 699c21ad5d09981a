package config

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime != "docker" {
		t.Fatalf("expected default runtime docker, got %q", cfg.Runtime)
	}
	if !cfg.PreserveOnFailure {
		t.Fatal("expected preserve-on-failure to default true")
	}
	if cfg.MaxCombinations != DefaultMaxCombinations {
		t.Fatalf("got %d", cfg.MaxCombinations)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	workers := 4
	preserve := false
	if err := Save(FileConfig{Runtime: "podman", Workers: &workers, PreserveOnFailure: &preserve}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime != "podman" || cfg.Workers != 4 || cfg.PreserveOnFailure {
		t.Fatalf("got %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(HomeEnv, t.TempDir())
	if err := Save(FileConfig{Runtime: "podman"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv("WRKFLW_RUNTIME", "emulation")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Runtime != "emulation" {
		t.Fatalf("expected env override to win, got %q", cfg.Runtime)
	}
}

func TestDirHonorsHomeOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv(HomeEnv, tmp)
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if dir != filepath.Clean(tmp) {
		t.Fatalf("got %q, want %q", dir, tmp)
	}
}
