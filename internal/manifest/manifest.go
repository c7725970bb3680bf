// Package manifest accumulates the output of one acquisition run for one
// archive and writes it to a timestamped text file: one local path or remote
// URL per line, UTF-8, no header.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coastalgo/bathyfetch/internal/fileops"
	"github.com/coastalgo/bathyfetch/internal/storage"
)

type Kind string

const (
	KindFilePaths Kind = "filepaths"
	KindS3URLs    Kind = "S3URLpaths"
)

// Writer accumulates lines and writes them once. A Writer is single-use:
// Finalize may be called exactly once, and the written file is never touched
// again.
type Writer struct {
	dir     string
	archive string
	kind    Kind
	lines   []string
	path    string
	now     func() time.Time
	newID   func() string
}

func New(dir, archive string, kind Kind) *Writer {
	return &Writer{
		dir:     dir,
		archive: archive,
		kind:    kind,
		now:     time.Now,
		newID:   shortID,
	}
}

func shortID() string {
	return uuid.NewString()[:8]
}

// Add appends one manifest line. Order of addition is the order written.
func (w *Writer) Add(line string) {
	w.lines = append(w.lines, line)
}

func (w *Writer) Len() int { return len(w.lines) }

// Finalize writes the manifest file and returns its path. The filename
// carries a second-granularity timestamp plus a random disambiguator so two
// runs in the same second never collide.
func (w *Writer) Finalize() (string, error) {
	if w.path != "" {
		return "", fmt.Errorf("manifest for %s already finalized at %s", w.archive, w.path)
	}

	stamp := w.now().Format("01_02_2006_150405")
	name := fmt.Sprintf("%s_%s_%s_%s.txt", w.archive, w.kind, stamp, w.newID())
	path := filepath.Join(w.dir, name)
	temp := filepath.Join(w.dir, "."+name+".tmp")

	var sb strings.Builder
	for _, line := range w.lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	// Stage to a temp sibling first so a crash mid-write never leaves a
	// truncated manifest for the batch consumer to pick up.
	if err := os.WriteFile(temp, []byte(sb.String()), 0o644); err != nil {
		return "", &storage.IOError{Op: "write manifest", Path: temp, Err: err}
	}
	if err := fileops.ReplaceFileSafely(temp, path); err != nil {
		_ = os.Remove(temp)
		return "", &storage.IOError{Op: "finalize manifest", Path: path, Err: err}
	}
	w.path = path
	return path, nil
}

// Path returns the finalized location, or "" before Finalize.
func (w *Writer) Path() string { return w.path }

// IsSidecar reports whether name is an auxiliary metadata side-file that is
// fetched to disk but excluded from path manifests.
func IsSidecar(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".xml")
}
