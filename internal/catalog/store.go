package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/coastalgo/bathyfetch/internal/geo"
	"github.com/coastalgo/bathyfetch/internal/output"
	"github.com/coastalgo/bathyfetch/internal/storage"
)

// ErrCatalogUnavailable marks a failure to obtain a current tile scheme.
// Without the scheme no tile query can be answered, so callers abort.
var ErrCatalogUnavailable = errors.New("tile scheme unavailable")

// Fetcher is the slice of the archive client the store needs.
type Fetcher interface {
	LatestKey(ctx context.Context, bucket, prefix string) (string, error)
	Download(ctx context.Context, bucket, key, target string) error
}

// Store keeps one cached tile-scheme file current against the archive. A
// cached copy whose name no longer matches the latest published scheme is
// moved to the Archive sibling and replaced, never deleted.
type Store struct {
	Fetcher      Fetcher
	Bucket       string
	SchemePrefix string
	Dir          string
	Emitter      output.EventEmitter

	index *Index
}

// Ensure makes the local scheme copy current and returns its path.
func (s *Store) Ensure(ctx context.Context) (string, error) {
	latest, err := s.Fetcher.LatestKey(ctx, s.Bucket, s.SchemePrefix)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if latest == "" {
		return "", fmt.Errorf("%w: no scheme published under s3://%s/%s", ErrCatalogUnavailable, s.Bucket, s.SchemePrefix)
	}

	if err := storage.EnsureDirWithArchive(s.Dir); err != nil {
		return "", err
	}

	target := filepath.Join(s.Dir, path.Base(latest))
	if _, err := os.Stat(target); err == nil {
		s.emit(output.LevelInfo, "tile scheme is current: %s", target)
		return target, nil
	}

	// A differently named copy is a stale vintage.
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return "", &storage.IOError{Op: "read scheme dir", Path: s.Dir, Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stale := filepath.Join(s.Dir, entry.Name())
		archived, err := storage.ArchiveFile(stale)
		if err != nil {
			return "", err
		}
		s.emit(output.LevelWarn, "moved stale tile scheme %s to %s", stale, archived)
	}

	s.emit(output.LevelInfo, "downloading tile scheme to %s", target)
	if err := s.Fetcher.Download(ctx, s.Bucket, latest, target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return target, nil
}

// Load ensures the scheme and returns its index, parsing at most once per
// store.
func (s *Store) Load(ctx context.Context) (*Index, error) {
	if s.index != nil {
		return s.index, nil
	}

	schemePath, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(schemePath)
	if err != nil {
		return nil, &storage.IOError{Op: "open tile scheme", Path: schemePath, Err: err}
	}
	defer file.Close()

	tiles, err := ParseScheme(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	s.index = NewIndex(tiles)
	return s.index, nil
}

// Tiles loads the scheme on first use and answers an intersection query.
func (s *Store) Tiles(ctx context.Context, area geo.Rect) ([]Tile, error) {
	index, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return index.Query(area), nil
}

func (s *Store) emit(level output.Level, format string, args ...any) {
	if s.Emitter == nil {
		return
	}
	s.Emitter.Emit(output.NewEvent(level, output.EventStatus, fmt.Sprintf(format, args...)))
}
