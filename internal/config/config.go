// Package config handles library layout and global configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	LibraryDir = ".cite"
	IndexFile  = "library.jsonl"
	CacheDir   = "cache"
	DBFile     = "library.db"
)

// MetaPath returns the path to the .cite directory of a library root.
func MetaPath(root string) string {
	return filepath.Join(root, LibraryDir)
}

// IndexPath returns the path to library.jsonl, the library's source of truth.
func IndexPath(root string) string {
	return filepath.Join(root, LibraryDir, IndexFile)
}

// CachePath returns the path to the cache directory of a library root.
func CachePath(root string) string {
	return filepath.Join(root, LibraryDir, CacheDir)
}

// DBPath returns the path to the ephemeral SQLite query cache.
func DBPath(root string) string {
	return filepath.Join(root, LibraryDir, CacheDir, DBFile)
}

// IsLibrary checks if the given path is the root of a library.
func IsLibrary(root string) bool {
	info, err := os.Stat(MetaPath(root))
	return err == nil && info.IsDir()
}

// FindLibrary walks up from the given path to find a library root.
func FindLibrary(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsLibrary(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a cite library (no %s directory found)", LibraryDir)
		}
		abs = parent
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// EnsureDir creates dir (and parents) if it does not exist.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
