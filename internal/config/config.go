// Package config resolves wrkflw's user-level defaults: a JSON file under
// the user's home directory, overridable by environment variables, merged
// into a single resolved Config the rest of the engine reads from.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName  = ".wrkflw"
	fileName = "config.json"

	// HomeEnv overrides ~/.wrkflw for testing.
	HomeEnv = "WRKFLW_HOME"

	// DefaultWorkers is used when neither the file nor the environment sets
	// a worker count; zero there means "host's available parallelism", so
	// the zero value is preserved rather than replaced here.
	DefaultWorkers = 0
	// DefaultMaxCombinations mirrors matrix.DefaultMaxCombinations; kept as
	// an independent constant so this package doesn't import internal/matrix
	// purely for one integer.
	DefaultMaxCombinations = 256
)

// FileConfig is the raw JSON shape persisted to disk.
type FileConfig struct {
	Runtime           string `json:"runtime,omitempty"` // "docker" | "podman" | "emulation"
	PreserveOnFailure *bool  `json:"preserve_on_failure,omitempty"`
	Workers           *int   `json:"workers,omitempty"`
	MaxCombinations   *int   `json:"max_combinations,omitempty"`
	CacheDir          string `json:"cache_dir,omitempty"`
}

// Config is the resolved set of defaults the CLI and engine read from.
type Config struct {
	Runtime           string
	PreserveOnFailure bool
	Workers           int
	// MaxCombinations is loaded and shown by `config show`; the job executor
	// does not read it and always applies matrix.DefaultMaxCombinations.
	MaxCombinations int
	CacheDir        string
}

// Dir returns ~/.wrkflw (or $WRKFLW_HOME if set).
func Dir() (string, error) {
	if override := os.Getenv(HomeEnv); override != "" {
		return filepath.Clean(override), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Path returns the config file's path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads the config file (tolerating its absence) and merges it over
// built-in defaults, with WRKFLW_RUNTIME/WRKFLW_WORKERS environment
// variables taking final precedence.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	file, err := readFile(path)
	if err != nil {
		return nil, err
	}

	cacheDir, err := defaultCacheDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Runtime:           "docker",
		PreserveOnFailure: true,
		Workers:           DefaultWorkers,
		MaxCombinations:   DefaultMaxCombinations,
		CacheDir:          cacheDir,
	}

	if file.Runtime != "" {
		cfg.Runtime = file.Runtime
	}
	if file.PreserveOnFailure != nil {
		cfg.PreserveOnFailure = *file.PreserveOnFailure
	}
	if file.Workers != nil {
		cfg.Workers = *file.Workers
	}
	if file.MaxCombinations != nil {
		cfg.MaxCombinations = *file.MaxCombinations
	}
	if file.CacheDir != "" {
		cfg.CacheDir = file.CacheDir
	}

	if v := os.Getenv("WRKFLW_RUNTIME"); v != "" {
		cfg.Runtime = v
	}
	if v := os.Getenv("WRKFLW_WORKERS"); v != "" {
		var n int
		if _, serr := fmt.Sscanf(v, "%d", &n); serr == nil {
			cfg.Workers = n
		}
	}

	return cfg, nil
}

// Save persists cfg's file-backed fields to disk.
func Save(file FileConfig) error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil { //nolint:gosec // intentionally user-only
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func readFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from the user's home directory
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("reading config: %w", err)
	}
	if len(data) == 0 {
		return FileConfig{}, nil
	}
	var file FileConfig
	if err := json.Unmarshal(data, &file); err != nil {
		return FileConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return file, nil
}

func defaultCacheDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}
