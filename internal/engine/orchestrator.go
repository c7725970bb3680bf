package engine

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coastalgo/bathyfetch/internal/archive"
	"github.com/coastalgo/bathyfetch/internal/cache"
	"github.com/coastalgo/bathyfetch/internal/catalog"
	"github.com/coastalgo/bathyfetch/internal/charts"
	"github.com/coastalgo/bathyfetch/internal/config"
	"github.com/coastalgo/bathyfetch/internal/geo"
	"github.com/coastalgo/bathyfetch/internal/manifest"
	"github.com/coastalgo/bathyfetch/internal/output"
	"github.com/coastalgo/bathyfetch/internal/storage"
	"github.com/coastalgo/bathyfetch/internal/tracks"
)

// errNoData is the internal signal that a discovery stage came up empty; the
// driver finalizes the counter and surfaces ErrNoDataFound.
var errNoData = errors.New("discovery found nothing")

// TileCatalog answers which raster tiles cover an area.
type TileCatalog interface {
	Tiles(ctx context.Context, area geo.Rect) ([]catalog.Tile, error)
}

// ChartIndex is the chart-catalog surface the orchestrator needs.
type ChartIndex interface {
	CellsInEnvelope(ctx context.Context, area geo.Rect) ([]charts.Cell, error)
	CellByName(ctx context.Context, name string) (charts.Cell, error)
	CellsForTracklines(ctx context.Context, lines []geo.Polyline) ([]string, error)
}

// TrackIndex is the trackline-catalog surface.
type TrackIndex interface {
	LinesInEnvelope(ctx context.Context, area geo.Rect) ([]tracks.Line, error)
	LinesForPlatform(ctx context.Context, platform string) ([]tracks.Line, error)
}

// ObjectLister lists remote objects under a prefix.
type ObjectLister interface {
	List(ctx context.Context, bucket, prefix string) ([]archive.ObjectInfo, error)
}

// ObjectProber answers single-object existence questions.
type ObjectProber interface {
	Stat(ctx context.Context, bucket, key string) (archive.Probe, error)
}

// DirReconciler brings one local directory in line with desired objects.
type DirReconciler interface {
	ReconcileDir(ctx context.Context, dir string, desired []cache.Desired) (cache.Result, error)
}

type Orchestrator struct {
	Catalog    TileCatalog
	Charts     ChartIndex
	Tracks     TrackIndex
	Lister     ObjectLister
	Prober     ObjectProber
	Reconciler DirReconciler
	Trigger    BatchTrigger
	Emitter    output.EventEmitter

	OutputRoot string
	Raster     config.RasterArchive
	Trackline  config.TracklineArchive

	// newRunID is swappable for tests.
	newRunID func() string
}

// pass is the state of one plan execution. List searches run one pass per
// name with everything below reset, so one name's discoveries never leak
// into the next name's manifest.
type pass struct {
	query Query
	plan  []stageID
	runID string

	completed int

	active Source // flips at the cross-reference boundary

	scope      []geo.Rect
	chartNames []string
	cells      []charts.Cell
	cellSeen   map[string]struct{}
	tiles      []catalog.Tile
	lines      []tracks.Line

	// primary-leg discoveries preserved across the flip
	primaryLines []tracks.Line

	manifests map[Source]string
	result    *Result
}

// Run executes one acquisition query end to end.
func (o *Orchestrator) Run(ctx context.Context, q Query) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	plan, err := buildPlan(q)
	if err != nil {
		return Result{}, err
	}

	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	result := Result{RunID: o.newRunID()}
	o.emitEvent(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunStarted,
		RunID:   result.RunID,
		Message: fmt.Sprintf("acquisition run %s: source=%s mode=%s search=%s", result.RunID, q.Source, q.Mode, q.Search),
	})

	manifests := map[Source]string{}
	names := q.names()
	emptyPasses := 0
	for _, name := range names {
		p := &pass{
			query:     q.scopedTo(name),
			plan:      plan,
			runID:     result.RunID,
			active:    q.Source,
			cellSeen:  map[string]struct{}{},
			manifests: manifests,
			result:    &result,
		}
		if err := o.runPass(ctx, p); err != nil {
			if errors.Is(err, errNoData) {
				// An empty name is recorded and the loop moves on; the
				// run only comes up empty when every pass did.
				o.emit(p, output.LevelWarn, "%v", ErrNoDataFound)
				emptyPasses++
				continue
			}
			o.finishRun(result.RunID, fmt.Sprintf("failed: %v", err))
			return result, err
		}
	}
	if emptyPasses == len(names) {
		o.finishRun(result.RunID, "no data found")
		return result, ErrNoDataFound
	}

	if q.CrossRef == CrossRefFetchBothThenCalculate && o.Trigger != nil {
		o.emitEvent(output.NewEvent(output.LevelInfo, output.EventStatus, "handing manifests to batch trigger"))
		if err := o.Trigger.Run(ctx, BatchRequest{
			RasterManifest:    manifests[SourceRaster],
			TracklineManifest: manifests[SourceTrackline],
			OutputRoot:        o.OutputRoot,
		}); err != nil {
			o.finishRun(result.RunID, fmt.Sprintf("batch trigger failed: %v", err))
			return result, err
		}
	}

	o.finishRun(result.RunID, "acquisition complete")
	return result, nil
}

// scopedTo narrows a list query to a single name for one pass.
func (q Query) scopedTo(name string) Query {
	if name == "" {
		return q
	}
	scoped := q
	if q.Source == SourceRaster {
		scoped.Charts = []string{name}
	} else {
		scoped.Vessels = []string{name}
	}
	return scoped
}

func (o *Orchestrator) runPass(ctx context.Context, p *pass) error {
	total := len(p.plan)
	o.emitEvent(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventStageTotal,
		RunID:   p.runID,
		Message: fmt.Sprintf("%d stages planned", total),
		Details: map[string]any{"total": total},
	})

	for _, stage := range p.plan {
		if err := ctx.Err(); err != nil {
			o.finalizeCounter(p)
			return err
		}
		if err := o.runStage(ctx, p, stage); err != nil {
			o.finalizeCounter(p)
			return err
		}
		p.completed++
		o.emitEvent(output.Event{
			Level:   output.LevelInfo,
			Event:   output.EventStageComplete,
			RunID:   p.runID,
			Message: fmt.Sprintf("stage %d/%d complete: %s", p.completed, total, stage),
			Details: map[string]any{"completed": p.completed, "total": total},
		})
	}
	return nil
}

// finalizeCounter forces the counter to the planned total on every early
// exit, so consumers watching progress always see it close out.
func (o *Orchestrator) finalizeCounter(p *pass) {
	total := len(p.plan)
	if p.completed >= total {
		return
	}
	p.completed = total
	o.emitEvent(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventStageComplete,
		RunID:   p.runID,
		Message: fmt.Sprintf("stage counter finalized at %d/%d", total, total),
		Details: map[string]any{"completed": total, "total": total},
	})
}

func (o *Orchestrator) runStage(ctx context.Context, p *pass, stage stageID) error {
	switch stage {
	case stagePrimaryInit:
		return o.stageInit(p)
	case stageOutputRoot:
		return o.stageOutputRoot(p)
	case stageChartScope:
		return o.stageChartScope(ctx, p)
	case stageCatalogQuery:
		return o.stageCatalogQuery(ctx, p)
	case stageTrackDiscovery:
		return o.stageTrackDiscovery(ctx, p)
	case stageTileDirs:
		return o.stageTileDirs(p)
	case stageFetchManifest:
		return o.stageManifest(ctx, p, manifest.KindFilePaths)
	case stageURLManifest:
		return o.stageManifest(ctx, p, manifest.KindS3URLs)
	case stageSecondaryInit:
		return o.stageSecondaryInit(p)
	case stageCellsFromTracks:
		return o.stageCellsFromTracks(ctx, p)
	default:
		return &ConfigurationError{Problems: []string{fmt.Sprintf("unplanned stage %d", stage)}}
	}
}

func (o *Orchestrator) stageInit(p *pass) error {
	if err := storage.EnsureDir(o.OutputRoot); err != nil {
		return err
	}
	if p.query.Search == SearchBBox {
		p.scope = p.query.Boxes
	} else if p.query.Source == SourceRaster {
		p.chartNames = p.query.Charts
	}
	o.emit(p, output.LevelInfo, "starting %s acquisition", p.active)
	return nil
}

func (o *Orchestrator) stageOutputRoot(p *pass) error {
	return storage.EnsureDirWithArchive(o.archiveDir(p.active))
}

// stageChartScope resolves chart names into cells; their bounds become the
// search scope for the catalog query.
func (o *Orchestrator) stageChartScope(ctx context.Context, p *pass) error {
	p.scope = nil
	for _, name := range p.chartNames {
		cell, err := o.Charts.CellByName(ctx, name)
		if err != nil {
			return err
		}
		p.recordCell(cell)
		p.scope = append(p.scope, cell.Bounds)
		o.emit(p, output.LevelInfo, "chart %s resolved", cell.Name)
	}
	if len(p.scope) == 0 {
		return errNoData
	}
	return nil
}

func (o *Orchestrator) stageCatalogQuery(ctx context.Context, p *pass) error {
	p.tiles = nil
	seen := map[string]struct{}{}
	for _, box := range p.scope {
		buffered, err := geo.Buffer(box)
		if err != nil {
			return err
		}
		tiles, err := o.Catalog.Tiles(ctx, buffered)
		if err != nil {
			return err
		}
		for _, tile := range tiles {
			if _, dup := seen[tile.Name]; dup {
				continue
			}
			seen[tile.Name] = struct{}{}
			p.tiles = append(p.tiles, tile)
		}
	}
	if len(p.tiles) == 0 {
		o.emit(p, output.LevelWarn, "no raster tiles cover the requested area")
		return errNoData
	}
	o.emit(p, output.LevelInfo, "%d raster tiles cover the requested area", len(p.tiles))
	return nil
}

func (o *Orchestrator) stageTrackDiscovery(ctx context.Context, p *pass) error {
	p.lines = nil
	if p.active == p.query.Source && p.query.Search == SearchList {
		for _, vessel := range p.query.Vessels {
			lines, err := o.Tracks.LinesForPlatform(ctx, vessel)
			if err != nil {
				return err
			}
			p.lines = append(p.lines, lines...)
		}
	} else {
		for _, box := range p.scope {
			lines, err := o.Tracks.LinesInEnvelope(ctx, box)
			if err != nil {
				return err
			}
			p.lines = append(p.lines, lines...)
		}
		p.lines = dedupLines(p.lines)
	}

	if len(p.lines) == 0 {
		o.emit(p, output.LevelWarn, "no tracklines found; check vessel spelling or widen the area")
		return errNoData
	}
	if p.active == p.query.Source {
		p.primaryLines = p.lines
	}
	o.emit(p, output.LevelInfo, "%d tracklines discovered across %d vessels", len(p.lines), len(tracks.Platforms(p.lines)))
	return nil
}

func (o *Orchestrator) stageTileDirs(p *pass) error {
	if p.active == SourceRaster {
		for _, tile := range p.tiles {
			if err := storage.EnsureDirWithArchive(o.tileDir(tile.Name)); err != nil {
				return err
			}
		}
		return nil
	}
	for _, vessel := range tracks.Platforms(p.lines) {
		if err := storage.EnsureDirWithArchive(o.vesselDir(vessel)); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) stageManifest(ctx context.Context, p *pass, kind manifest.Kind) error {
	writer := manifest.New(o.archiveDir(p.active), string(p.active), kind)

	var err error
	if p.active == SourceRaster {
		err = o.collectRaster(ctx, p, kind, writer)
	} else {
		err = o.collectTrackline(ctx, p, kind, writer)
	}
	if err != nil {
		return err
	}

	if writer.Len() == 0 {
		o.emit(p, output.LevelWarn, "no %s data available for the request", p.active)
		return errNoData
	}

	written, err := writer.Finalize()
	if err != nil {
		return err
	}
	p.manifests[p.active] = written
	p.result.Manifests = append(p.result.Manifests, written)
	o.emit(p, output.LevelInfo, "manifest written: %s", written)
	return nil
}

// collectRaster resolves each tile's objects and either reconciles the
// local cache or compiles locators. Tiles with no remote objects are skipped
// with a warning; the catalog routinely lists tiles ahead of publication.
func (o *Orchestrator) collectRaster(ctx context.Context, p *pass, kind manifest.Kind, writer *manifest.Writer) error {
	for _, tile := range p.tiles {
		prefix := o.Raster.TilePrefix + tile.Name + "/"
		objects, err := o.Lister.List(ctx, o.Raster.Bucket, prefix)
		if err != nil {
			return err
		}
		if len(objects) == 0 {
			o.emit(p, output.LevelWarn, "no raster files available for tile %s", tile.Name)
			p.result.MissingObjects++
			continue
		}

		if err := o.discoverAffectedCharts(ctx, p, tile); err != nil {
			return err
		}

		if kind == manifest.KindS3URLs {
			url, err := archive.S3URLFromHTTP(tile.GeoTIFFURL, o.Raster.Bucket)
			if err != nil {
				return err
			}
			writer.Add(url)
			continue
		}

		dir := o.tileDir(tile.Name)
		desired := make([]cache.Desired, 0, len(objects))
		for _, obj := range objects {
			want := cache.Desired{
				Bucket: o.Raster.Bucket,
				Key:    obj.Key,
				Target: filepath.Join(dir, path.Base(obj.Key)),
				Size:   obj.Size,
			}
			if token, ok := archive.DateToken(obj.Key); ok {
				want.DateToken = token
			}
			desired = append(desired, want)
		}
		result, err := o.Reconciler.ReconcileDir(ctx, dir, desired)
		p.result.Fetched += result.Fetched
		p.result.Skipped += result.Skipped
		p.result.Archived += result.Archived
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			// The reconciler already stopped its own directory; the rest
			// of the tiles are still worth fetching.
			o.emit(p, output.LevelWarn, "reconcile of %s failed, leaving that tile incomplete: %v", dir, err)
			p.result.FailedDirs++
			continue
		}

		for _, want := range desired {
			if manifest.IsSidecar(want.Target) {
				continue
			}
			writer.Add(want.Target)
		}
	}
	return nil
}

// collectTrackline probes each derived object key. Absent objects are a
// normal outcome (the index outlives archive retention) and are skipped
// with a warning; any other probe failure is fatal.
func (o *Orchestrator) collectTrackline(ctx context.Context, p *pass, kind manifest.Kind, writer *manifest.Writer) error {
	byVessel := map[string][]cache.Desired{}
	for _, line := range p.lines {
		key, err := archive.TracklineKey(line.Name)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(key, o.Trackline.KeyPrefix) {
			return &archive.ParseError{Name: line.Name, Reason: "derived key outside the configured archive prefix"}
		}

		probe, err := o.Prober.Stat(ctx, o.Trackline.Bucket, key)
		if err != nil {
			return err
		}
		if probe.Existence == archive.ExistenceAbsent {
			o.emit(p, output.LevelWarn, "%s does not exist in the trackline archive, skipping", path.Base(key))
			p.result.MissingObjects++
			continue
		}

		o.emitEvent(output.Event{
			Level:   output.LevelInfo,
			Event:   output.EventTrackline,
			RunID:   p.runID,
			Archive: string(p.active),
			Message: fmt.Sprintf("trackline %s (%s)", path.Base(key), line.Platform),
			Details: map[string]any{"platform": line.Platform, "points": len(line.Path)},
		})

		if kind == manifest.KindS3URLs {
			writer.Add(archive.S3URL(o.Trackline.Bucket, key))
			continue
		}
		target := filepath.Join(o.vesselDir(line.Platform), path.Base(key))
		byVessel[line.Platform] = append(byVessel[line.Platform], cache.Desired{
			Bucket: o.Trackline.Bucket,
			Key:    key,
			Target: target,
			Size:   probe.Size,
		})
	}

	if kind == manifest.KindS3URLs {
		return nil
	}

	for _, vessel := range sortedKeys(byVessel) {
		desired := byVessel[vessel]
		dir := o.vesselDir(vessel)
		result, err := o.Reconciler.ReconcileDir(ctx, dir, desired)
		p.result.Fetched += result.Fetched
		p.result.Skipped += result.Skipped
		p.result.Archived += result.Archived
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			o.emit(p, output.LevelWarn, "reconcile of %s failed, leaving that vessel incomplete: %v", dir, err)
			p.result.FailedDirs++
			continue
		}
		for _, want := range desired {
			writer.Add(want.Target)
		}
	}
	return nil
}

// discoverAffectedCharts buffers the tile inward and records every chart
// cell it overlaps. The buffer keeps edge-adjacent charts out.
func (o *Orchestrator) discoverAffectedCharts(ctx context.Context, p *pass, tile catalog.Tile) error {
	bounds := tile.Bounds()
	o.emitEvent(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventTileOutline,
		RunID:   p.runID,
		Archive: string(p.active),
		Message: fmt.Sprintf("tile %s", tile.Name),
		Details: rectDetails(bounds),
	})

	buffered, err := geo.Buffer(bounds)
	if err != nil {
		return err
	}
	cells, err := o.Charts.CellsInEnvelope(ctx, buffered)
	if err != nil {
		return err
	}
	for _, cell := range cells {
		if p.recordCell(cell) {
			o.emitEvent(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventChartOutline,
				RunID:   p.runID,
				Message: fmt.Sprintf("chart %s affected", cell.Name),
				Details: rectDetails(cell.Bounds),
			})
		}
	}
	return nil
}

func (o *Orchestrator) stageSecondaryInit(p *pass) error {
	p.active = p.query.Source.other()
	p.tiles = nil
	p.lines = nil

	if p.active == SourceTrackline {
		// Scope the trackline leg to the charts the raster leg touched.
		p.scope = nil
		for _, cell := range p.cells {
			p.scope = append(p.scope, cell.Bounds)
		}
		if len(p.scope) == 0 {
			o.emit(p, output.LevelWarn, "no charts discovered to cross-reference")
			return errNoData
		}
	}
	o.emit(p, output.LevelInfo, "cross-referencing against %s", p.active)
	return nil
}

func (o *Orchestrator) stageCellsFromTracks(ctx context.Context, p *pass) error {
	paths := make([]geo.Polyline, 0, len(p.primaryLines))
	for _, line := range p.primaryLines {
		if len(line.Path) > 0 {
			paths = append(paths, line.Path)
		}
	}
	if len(paths) == 0 {
		return errNoData
	}
	names, err := o.Charts.CellsForTracklines(ctx, paths)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		o.emit(p, output.LevelWarn, "tracklines intersect no charts")
		return errNoData
	}
	p.chartNames = names
	o.emit(p, output.LevelInfo, "tracklines intersect %d charts", len(names))
	return nil
}

// recordCell accumulates a chart cell once, reporting whether it was new.
func (p *pass) recordCell(cell charts.Cell) bool {
	if _, dup := p.cellSeen[cell.Name]; dup {
		return false
	}
	p.cellSeen[cell.Name] = struct{}{}
	p.cells = append(p.cells, cell)
	p.result.AffectedCharts = append(p.result.AffectedCharts, cell.Name)
	return true
}

func (o *Orchestrator) archiveDir(source Source) string {
	return filepath.Join(o.OutputRoot, string(source))
}

func (o *Orchestrator) tileDir(tile string) string {
	return filepath.Join(o.OutputRoot, string(SourceRaster), storage.SanitizeName(tile))
}

func (o *Orchestrator) vesselDir(vessel string) string {
	return filepath.Join(o.OutputRoot, string(SourceTrackline), storage.SanitizeName(vessel))
}

func (o *Orchestrator) finishRun(runID, message string) {
	o.emitEvent(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunFinished,
		RunID:   runID,
		Message: message,
	})
}

func (o *Orchestrator) emit(p *pass, level output.Level, format string, args ...any) {
	o.emitEvent(output.Event{
		Level:   level,
		Event:   output.EventStatus,
		RunID:   p.runID,
		Archive: string(p.active),
		Message: fmt.Sprintf(format, args...),
	})
}

func (o *Orchestrator) emitEvent(event output.Event) {
	if o.Emitter == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	o.Emitter.Emit(event)
}

func rectDetails(r geo.Rect) map[string]any {
	return map[string]any{
		"min_lat": r.SE.Lat,
		"max_lat": r.NW.Lat,
		"min_lon": r.NW.Lon,
		"max_lon": r.SE.Lon,
	}
}

func dedupLines(lines []tracks.Line) []tracks.Line {
	seen := map[string]struct{}{}
	out := lines[:0]
	for _, line := range lines {
		if _, dup := seen[line.Name]; dup {
			continue
		}
		seen[line.Name] = struct{}{}
		out = append(out, line)
	}
	return out
}

func sortedKeys(m map[string][]cache.Desired) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
