package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coastalgo/bathyfetch/internal/archive"
	"github.com/coastalgo/bathyfetch/internal/cache"
	"github.com/coastalgo/bathyfetch/internal/catalog"
	"github.com/coastalgo/bathyfetch/internal/charts"
	"github.com/coastalgo/bathyfetch/internal/config"
	"github.com/coastalgo/bathyfetch/internal/engine"
	"github.com/coastalgo/bathyfetch/internal/exitcode"
	"github.com/coastalgo/bathyfetch/internal/geo"
	"github.com/coastalgo/bathyfetch/internal/output"
	"github.com/coastalgo/bathyfetch/internal/tracks"
)

func newFetchCommand(app *AppContext) *cobra.Command {
	var (
		source    string
		mode      string
		crossRef  string
		bboxes    []string
		chartIDs  []string
		vessels   []string
		outputDir string
		runCalc   bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run one acquisition against the bathymetry archives",
		Long: "fetch resolves the requested area or identifiers against the selected\n" +
			"archive, downloads or compiles locators for the covering data, and writes\n" +
			"a manifest of the result.",
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := buildQuery(source, mode, crossRef, bboxes, chartIDs, vessels)
			if err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}

			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if outputDir != "" {
				cfg.OutputRoot = outputDir
			}
			root, err := config.ExpandPath(cfg.OutputRoot)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			emitter := newRunEmitter(app)

			httpTimeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
			if timeout > 0 {
				httpTimeout = timeout
			}
			httpClient := &http.Client{Timeout: httpTimeout}

			ctx, stop := signal.NotifyContext(context.Background(), interruptSignals()...)
			defer stop()

			s3Client, err := archive.NewClient(ctx, cfg.Region)
			if err != nil {
				return withExitCode(exitcode.RuntimeFailure, err)
			}

			var trigger engine.BatchTrigger = engine.NoopTrigger{}
			if runCalc {
				trigger = &engine.ExecTrigger{
					Command: cfg.Batch,
					Runner:  engine.NewSubprocessRunner(app.IO.Out, app.IO.ErrOut),
					Timeout: timeout,
				}
			}

			orchestrator := &engine.Orchestrator{
				Catalog: &catalog.Store{
					Fetcher:      s3Client,
					Bucket:       cfg.Raster.Bucket,
					SchemePrefix: cfg.Raster.SchemePrefix,
					Dir:          filepath.Join(root, string(engine.SourceRaster), "BlueTopo_Tile_Scheme"),
					Emitter:      emitter,
				},
				Charts:     charts.NewClient(cfg.ChartService.URL, cfg.ChartService.Bands, httpClient),
				Tracks:     tracks.NewClient(cfg.TrackService.URL, httpClient),
				Lister:     s3Client,
				Prober:     s3Client.Resolver(),
				Reconciler: &cache.Reconciler{Fetcher: s3Client, Emitter: emitter},
				Trigger:    trigger,
				Emitter:    emitter,
				OutputRoot: root,
				Raster:     cfg.Raster,
				Trackline:  cfg.Trackline,
			}

			result, runErr := orchestrator.Run(ctx, query)
			if runErr != nil {
				var confErr *engine.ConfigurationError
				var badCell *charts.BadCellNameError
				switch {
				case errors.As(runErr, &confErr), errors.As(runErr, &badCell):
					return withExitCode(exitcode.InvalidUsage, runErr)
				case errors.Is(runErr, engine.ErrNoDataFound):
					return withExitCode(exitcode.NoData, runErr)
				case errors.Is(runErr, context.Canceled):
					return withExitCode(exitcode.Interrupted, runErr)
				default:
					return withExitCode(exitcode.RuntimeFailure, runErr)
				}
			}

			if result.MissingObjects > 0 || result.FailedDirs > 0 {
				return withExitCode(exitcode.PartialSuccess,
					fmt.Errorf("run finished incomplete: %d referenced objects missing, %d directories failed",
						result.MissingObjects, result.FailedDirs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Primary archive: nbs (raster) or dcdb (trackline)")
	cmd.Flags().StringVar(&mode, "mode", "local", "What to produce: local (download) or url (locator manifest)")
	cmd.Flags().StringVar(&crossRef, "cross-ref", "none", "Cross-reference the other archive: none, fetch-other, or calculate")
	cmd.Flags().StringArrayVar(&bboxes, "bbox", nil, "Search area as N,W,S,E decimal degrees (repeatable)")
	cmd.Flags().StringArrayVar(&chartIDs, "chart", nil, "Chart cell to fetch raster data for (repeatable)")
	cmd.Flags().StringArrayVar(&vessels, "vessel", nil, "Vessel to fetch trackline data for (repeatable)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the configured output root")
	cmd.Flags().BoolVar(&runCalc, "run-calc", false, "Execute the configured batch command after a calculate run")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Override the remote request timeout (e.g. 90s, 5m)")
	return cmd
}

// newRunEmitter picks the event sink for a run. JSON mode puts NDJSON on
// stdout for machine consumers and, unless silenced, mirrors a human
// progress stream to stderr so an operator watching the terminal still
// sees what a piped consumer is reading.
func newRunEmitter(app *AppContext) output.EventEmitter {
	if app.Opts.JSON {
		jsonEmitter := output.NewJSONEmitter(app.IO.Out)
		if app.Opts.Quiet {
			return jsonEmitter
		}
		return output.NewMultiEmitter(jsonEmitter,
			output.NewHumanEmitter(app.IO.ErrOut, app.IO.ErrOut, false, app.Opts.Verbose))
	}
	return output.NewHumanEmitter(app.IO.Out, app.IO.ErrOut, app.Opts.Quiet, app.Opts.Verbose)
}

// buildQuery turns raw flag values into an engine query, inferring the
// search method from which selector flags were given.
func buildQuery(source, mode, crossRef string, bboxes, chartIDs, vessels []string) (engine.Query, error) {
	query := engine.Query{
		Source:   engine.Source(strings.ToLower(strings.TrimSpace(source))),
		Mode:     engine.Mode(strings.ToLower(strings.TrimSpace(mode))),
		CrossRef: engine.CrossReferenceMode(strings.ToLower(strings.TrimSpace(crossRef))),
		Charts:   chartIDs,
		Vessels:  vessels,
	}
	if query.Source == "" {
		return engine.Query{}, fmt.Errorf("--source is required (nbs or dcdb)")
	}

	hasList := len(chartIDs) > 0 || len(vessels) > 0
	switch {
	case len(bboxes) > 0 && hasList:
		return engine.Query{}, fmt.Errorf("--bbox cannot be combined with --chart or --vessel")
	case len(bboxes) > 0:
		query.Search = engine.SearchBBox
		for _, raw := range bboxes {
			box, err := parseBBox(raw)
			if err != nil {
				return engine.Query{}, err
			}
			query.Boxes = append(query.Boxes, box)
		}
	case hasList:
		query.Search = engine.SearchList
	default:
		return engine.Query{}, fmt.Errorf("one of --bbox, --chart or --vessel is required")
	}

	if err := query.Validate(); err != nil {
		return engine.Query{}, err
	}
	return query, nil
}

// parseBBox reads the N,W,S,E corner convention used throughout the
// catalogs.
func parseBBox(raw string) (geo.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return geo.Rect{}, fmt.Errorf("invalid --bbox %q: expected N,W,S,E", raw)
	}
	values := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geo.Rect{}, fmt.Errorf("invalid --bbox %q: %q is not a number", raw, strings.TrimSpace(part))
		}
		values[i] = v
	}
	rect, err := geo.NewRect(
		geo.Point{Lat: values[0], Lon: values[1]},
		geo.Point{Lat: values[2], Lon: values[3]},
	)
	if err != nil {
		return geo.Rect{}, fmt.Errorf("invalid --bbox %q: %w", raw, err)
	}
	return rect, nil
}
