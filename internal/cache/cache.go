// Package cache implements the content-addressed remote action/workflow
// cache: one directory per owner/repo@ref key, guarded by a per-key lock
// so concurrent job combinations sharing an action don't race to clone it
// twice, with an index recording what's already materialized.
package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/nightlyone/lockfile"
)

// Store is a directory of cached remote sources, keyed by an opaque string
// (e.g. "actions/checkout@v4"), indexed in a local sqlite database so a
// fresh process can tell a warm cache from a cold one without re-probing
// every directory on disk.
type Store struct {
	root string
	db   *sql.DB
}

// Open creates (if needed) the cache root under dir and its sqlite index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache root %s: %w", dir, err)
	}
	dbPath := filepath.Join(dir, "index.sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache index: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key TEXT PRIMARY KEY,
	dir TEXT NOT NULL,
	fetched_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &Store{root: dir, db: db}, nil
}

// Close releases the index database handle.
func (s *Store) Close() error { return s.db.Close() }

// dirFor derives the on-disk directory for key without touching the
// filesystem or the index.
func (s *Store) dirFor(key string) string {
	safe := strings.NewReplacer("/", "_", "@", "_", ":", "_").Replace(key)
	return filepath.Join(s.root, safe)
}

// Ensure returns the materialized directory for key, invoking fetch to
// populate it only on a cold cache. A per-key lockfile (nightlyone/lockfile)
// guards the window between checking the index and finishing the fetch, so
// two combinations resolving the same action concurrently serialize instead
// of racing to clone into the same directory.
func (s *Store) Ensure(ctx context.Context, key string, fetch func(dir string) error) (string, error) {
	if cached, ok := s.lookup(key); ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
		// index says present but directory vanished; fall through to refetch.
	}

	dir := s.dirFor(key)
	lockPath := dir + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return "", err
	}
	lock, err := lockfile.New(lockPath)
	if err != nil {
		return "", fmt.Errorf("creating cache lock for %s: %w", key, err)
	}

	for {
		if err := lock.TryLock(); err == nil {
			break
		} else if err != lockfile.ErrBusy { //nolint:errorlint // lockfile sentinel comparison
			return "", fmt.Errorf("acquiring cache lock for %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	defer lock.Unlock() //nolint:errcheck

	// Re-check after acquiring the lock: a peer may have populated it while
	// we were waiting.
	if cached, ok := s.lookup(key); ok {
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing stale cache dir %s: %w", dir, err)
	}
	if err := fetch(dir); err != nil {
		return "", err
	}
	if err := s.record(key, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Store) lookup(key string) (string, bool) {
	var dir string
	err := s.db.QueryRow(`SELECT dir FROM entries WHERE key = ?`, key).Scan(&dir)
	if err != nil {
		return "", false
	}
	return dir, true
}

func (s *Store) record(key, dir string) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (key, dir, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET dir = excluded.dir, fetched_at = excluded.fetched_at`,
		key, dir, time.Now().Unix(),
	)
	return err
}
