// Package security guards filesystem paths handed to HTTP handlers.
// Artifact paths are read back from the job database, so a corrupted or
// hand-edited row must not be able to point the server at arbitrary files.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateWithinDir rejects any path that resolves outside dir.
// Symlinks are resolved before comparison so a link inside dir cannot
// smuggle out a target elsewhere. Nonexistent leaf components are
// allowed; the nearest existing ancestor is resolved instead.
func ValidateWithinDir(path, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}

	canonical := resolveExisting(absPath)
	canonicalDir, err := filepath.EvalSymlinks(absDir)
	if err != nil {
		return fmt.Errorf("resolve directory symlinks: %w", err)
	}

	rel, err := filepath.Rel(canonicalDir, canonical)
	if err != nil {
		return fmt.Errorf("path outside %s: %w", dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path %s escapes %s", path, dir)
	}
	return nil
}

// resolveExisting resolves symlinks in path. If path does not exist it
// walks up to the nearest existing ancestor, resolves that, and
// reattaches the remaining components, so /data/link/new.mp4 is judged
// by where link actually points.
func resolveExisting(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	for check := path; ; {
		parent := filepath.Dir(check)
		if parent == check {
			return path
		}
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, path)
			return filepath.Join(resolved, rel)
		}
		check = parent
	}
}
