package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// ResolveFrom expands '~' in p and, when p is still relative, anchors it at
// baseDir. Empty input stays empty.
func ResolveFrom(baseDir, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	exp, err := ExpandHome(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(exp) || baseDir == "" {
		return exp, nil
	}
	return filepath.Join(baseDir, exp), nil
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

// PathExists checks if the given path exists. Errors other than not-exist
// (e.g. permission) count as existing.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
