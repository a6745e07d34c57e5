// Package cachedir resolves and manages the on-disk cache directory.
package cachedir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvOverride names the environment variable that, when set, overrides
	// cache directory resolution entirely
	EnvOverride = "DATASTASH_CACHE_DIR"

	// DefaultSubdir is the cache subdirectory used when the caller does not
	// name one
	DefaultSubdir = "datastash"
)

// Dir resolves the cache directory for a subdirectory name. The environment
// override wins; otherwise the platform user-cache location is used. The
// directory is not created.
func Dir(subdir string) (string, error) {
	if dir := os.Getenv(EnvOverride); dir != "" {
		return dir, nil
	}
	if subdir == "" {
		subdir = DefaultSubdir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("cachedir: resolving user cache directory: %w", err)
	}
	return filepath.Join(base, subdir), nil
}

// Ensure creates the directory if it does not exist.
func Ensure(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cachedir: creating %s: %w", dir, err)
	}
	return nil
}

// Path resolves and creates the cache directory for subdir, then joins
// filename onto it.
func Path(filename, subdir string) (string, error) {
	dir, err := Dir(subdir)
	if err != nil {
		return "", err
	}
	if err := Ensure(dir); err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}

// Clear removes everything under dir and recreates it empty.
func Clear(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cachedir: clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("cachedir: recreating %s: %w", dir, err)
	}
	return nil
}
