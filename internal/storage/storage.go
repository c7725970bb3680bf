// Package storage lays out the local output tree. Every leaf directory that
// receives downloads gets a sibling Archive folder; superseded files are
// renamed into it, never deleted.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const ArchiveDirName = "Archive"

// IOError wraps a filesystem failure with the operation and path that caused
// it. All local I/O failures in the acquisition path surface as *IOError.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// EnsureDir creates dir (and parents) if absent; existing directories are a
// no-op.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// EnsureDirWithArchive creates dir plus its Archive child.
func EnsureDirWithArchive(dir string) error {
	if err := EnsureDir(dir); err != nil {
		return err
	}
	return EnsureDir(filepath.Join(dir, ArchiveDirName))
}

// ArchiveFile renames path into the Archive folder beside it and returns the
// new location. The Archive folder is created on demand. An existing archived
// copy of the same name is never overwritten; a numeric suffix is appended.
func ArchiveFile(path string) (string, error) {
	dir := filepath.Dir(path)
	archiveDir := filepath.Join(dir, ArchiveDirName)
	if err := EnsureDir(archiveDir); err != nil {
		return "", err
	}

	base := filepath.Base(path)
	dest := filepath.Join(archiveDir, base)
	for i := 1; ; i++ {
		_, err := os.Stat(dest)
		if errors.Is(err, os.ErrNotExist) {
			break
		}
		if err != nil {
			return "", &IOError{Op: "stat", Path: dest, Err: err}
		}
		dest = filepath.Join(archiveDir, fmt.Sprintf("%s.%d", base, i))
	}

	if err := os.Rename(path, dest); err != nil {
		return "", &IOError{Op: "archive", Path: path, Err: err}
	}
	return dest, nil
}

// SanitizeName makes an entity name (vessel, tile) safe to use as a single
// path element.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, string(os.PathSeparator), "")
	return name
}
