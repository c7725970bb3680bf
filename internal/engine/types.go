// Package engine orchestrates one acquisition run: resolve the areas or
// identifiers the user asked for, resolve the remote objects that cover
// them, reconcile the local cache or compile locators, write manifests, and
// optionally hand both manifests to the batch trigger.
package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coastalgo/bathyfetch/internal/geo"
)

// Source selects which archive a run (or run leg) reads.
type Source string

const (
	SourceRaster    Source = "nbs"
	SourceTrackline Source = "dcdb"
)

// Mode selects what the run produces: a reconciled local cache or a file of
// remote locators.
type Mode string

const (
	ModeLocal Mode = "local"
	ModeURL   Mode = "url"
)

// SearchMethod is how the area of interest is given.
type SearchMethod string

const (
	SearchBBox SearchMethod = "bbox"
	SearchList SearchMethod = "list"
)

// CrossReferenceMode controls the secondary leg against the other archive.
type CrossReferenceMode string

const (
	CrossRefNone                   CrossReferenceMode = "none"
	CrossRefFetchOther             CrossReferenceMode = "fetch-other"
	CrossRefFetchBothThenCalculate CrossReferenceMode = "calculate"
)

// ErrNoDataFound is the clean terminal outcome of a run whose discovery
// found nothing to acquire.
var ErrNoDataFound = errors.New("no data found for the requested area")

// ConfigurationError reports a query that can never produce a valid run.
// It is raised before any I/O.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid query: " + strings.Join(e.Problems, "; ")
}

// Query is one fully specified acquisition request.
type Query struct {
	Source   Source
	Mode     Mode
	Search   SearchMethod
	CrossRef CrossReferenceMode

	// Boxes drives bbox search; Charts drives raster list search; Vessels
	// drives trackline list search.
	Boxes   []geo.Rect
	Charts  []string
	Vessels []string
}

// Validate rejects impossible queries before any stage runs.
func (q Query) Validate() error {
	problems := []string{}

	switch q.Source {
	case SourceRaster, SourceTrackline:
	default:
		problems = append(problems, fmt.Sprintf("unknown source %q", q.Source))
	}
	switch q.Mode {
	case ModeLocal, ModeURL:
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", q.Mode))
	}
	switch q.CrossRef {
	case CrossRefNone, CrossRefFetchOther, CrossRefFetchBothThenCalculate:
	default:
		problems = append(problems, fmt.Sprintf("unknown cross-reference mode %q", q.CrossRef))
	}

	switch q.Search {
	case SearchBBox:
		if len(q.Boxes) == 0 {
			problems = append(problems, "bbox search needs at least one bounding box")
		}
		for _, box := range q.Boxes {
			if err := box.Validate(); err != nil {
				problems = append(problems, err.Error())
			}
		}
	case SearchList:
		switch q.Source {
		case SourceRaster:
			if len(q.Charts) == 0 {
				problems = append(problems, "chart list search needs at least one chart name")
			}
		case SourceTrackline:
			if len(q.Vessels) == 0 {
				problems = append(problems, "vessel list search needs at least one vessel name")
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown search method %q", q.Search))
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// names returns the per-name pass list for list searches, or a single
// anonymous pass for bbox search.
func (q Query) names() []string {
	if q.Search != SearchList {
		return []string{""}
	}
	if q.Source == SourceRaster {
		return q.Charts
	}
	return q.Vessels
}

// other returns the opposite archive.
func (s Source) other() Source {
	if s == SourceRaster {
		return SourceTrackline
	}
	return SourceRaster
}

// Result summarizes a finished run.
type Result struct {
	RunID          string
	Manifests      []string
	Fetched        int
	Skipped        int
	Archived       int
	MissingObjects int
	FailedDirs     int
	AffectedCharts []string
}
