// Package cache reconciles one local download directory against the set of
// remote objects the run wants there. Files are classified as missing, fresh
// or stale; stale files move to the sibling Archive folder and are fetched
// again. Reconciliation is idempotent: a second pass over an already current
// directory performs no fetches and no archival.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coastalgo/bathyfetch/internal/archive"
	"github.com/coastalgo/bathyfetch/internal/output"
	"github.com/coastalgo/bathyfetch/internal/storage"
)

// Desired is one object the directory should hold. Size is the remote
// object's size; a cached file of any other size is treated as corrupt.
// DateToken, when set, is the publication vintage embedded in current file
// names; same-directory files carrying a different token are superseded.
type Desired struct {
	Bucket    string
	Key       string
	Target    string
	Size      int64
	DateToken string
}

// Result counts the actions one reconciliation took.
type Result struct {
	Fetched  int
	Skipped  int
	Archived int
}

// Fetcher downloads one remote object to a local path.
type Fetcher interface {
	Download(ctx context.Context, bucket, key, target string) error
}

type Reconciler struct {
	Fetcher Fetcher
	Emitter output.EventEmitter
}

// ReconcileDir brings dir in line with desired. A fetch failure aborts the
// remaining candidates for this directory and surfaces the error; other
// directories in the run are unaffected.
func (r *Reconciler) ReconcileDir(ctx context.Context, dir string, desired []Desired) (Result, error) {
	result := Result{}
	if err := storage.EnsureDirWithArchive(dir); err != nil {
		return result, err
	}

	if err := r.archiveSupersededVintages(dir, desired, &result); err != nil {
		return result, err
	}

	for _, want := range desired {
		info, err := os.Stat(want.Target)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// missing
		case err != nil:
			return result, &storage.IOError{Op: "stat", Path: want.Target, Err: err}
		case info.Size() == want.Size:
			r.emit(output.LevelInfo, "skipping existing file at %s", want.Target)
			result.Skipped++
			continue
		default:
			archived, err := storage.ArchiveFile(want.Target)
			if err != nil {
				return result, err
			}
			r.emit(output.LevelWarn, "moved corrupt %s to %s", want.Target, archived)
			result.Archived++
		}

		r.emit(output.LevelInfo, "downloading %s to %s", want.Key, want.Target)
		if err := r.Fetcher.Download(ctx, want.Bucket, want.Key, want.Target); err != nil {
			r.emit(output.LevelError, "download of %s failed: %v", want.Key, err)
			return result, err
		}
		result.Fetched++
	}
	return result, nil
}

// archiveSupersededVintages moves files whose embedded date token no longer
// matches any desired vintage. Token matching is by file name only, which is
// as fragile as the names it depends on; files without a recognizable token
// are left alone.
func (r *Reconciler) archiveSupersededVintages(dir string, desired []Desired, result *Result) error {
	current := map[string]struct{}{}
	for _, want := range desired {
		if want.DateToken != "" {
			current[want.DateToken] = struct{}{}
		}
	}
	if len(current) == 0 {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return &storage.IOError{Op: "read directory", Path: dir, Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		token, ok := archive.DateToken(entry.Name())
		if !ok {
			continue
		}
		if _, fresh := current[token]; fresh {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		archived, err := storage.ArchiveFile(path)
		if err != nil {
			return err
		}
		r.emit(output.LevelWarn, "moving superseded %s to %s", path, archived)
		result.Archived++
	}
	return nil
}

func (r *Reconciler) emit(level output.Level, format string, args ...any) {
	if r.Emitter == nil {
		return
	}
	r.Emitter.Emit(output.NewEvent(level, output.EventStatus, fmt.Sprintf(format, args...)))
}
