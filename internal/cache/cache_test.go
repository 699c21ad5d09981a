package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureFetchesOnceThenReusesDir(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close() //nolint:errcheck

	calls := 0
	fetch := func(dir string) error {
		calls++
		return os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644)
	}

	dir1, err := store.Ensure(context.Background(), "actions/checkout@v4", fetch)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	dir2, err := store.Ensure(context.Background(), "actions/checkout@v4", fetch)
	if err != nil {
		t.Fatalf("Ensure (second): %v", err)
	}
	if dir1 != dir2 {
		t.Fatalf("expected same dir, got %q and %q", dir1, dir2)
	}
	if calls != 1 {
		t.Fatalf("expected fetch called once, got %d", calls)
	}
}

func TestEnsureRefetchesAfterDirRemoved(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close() //nolint:errcheck

	calls := 0
	fetch := func(dir string) error {
		calls++
		return os.MkdirAll(dir, 0o755)
	}

	dir, err := store.Ensure(context.Background(), "k@v1", fetch)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := store.Ensure(context.Background(), "k@v1", fetch); err != nil {
		t.Fatalf("Ensure (after removal): %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fetch called twice, got %d", calls)
	}
}
