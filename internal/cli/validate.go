package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coastalgo/bathyfetch/internal/config"
	"github.com/coastalgo/bathyfetch/internal/exitcode"
)

func newValidateCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate config and print the resolved endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			if app.Opts.JSON {
				payload := map[string]any{
					"valid":            true,
					"output_root":      cfg.OutputRoot,
					"raster_bucket":    cfg.Raster.Bucket,
					"trackline_bucket": cfg.Trackline.Bucket,
				}
				encoded, _ := json.Marshal(payload)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				fmt.Fprintln(app.IO.Out, "Config is valid.")
				fmt.Fprintf(app.IO.Out, "output root:      %s\n", cfg.OutputRoot)
				fmt.Fprintf(app.IO.Out, "raster bucket:    %s\n", cfg.Raster.Bucket)
				fmt.Fprintf(app.IO.Out, "trackline bucket: %s\n", cfg.Trackline.Bucket)
				fmt.Fprintf(app.IO.Out, "chart service:    %s\n", cfg.ChartService.URL)
				fmt.Fprintf(app.IO.Out, "track service:    %s\n", cfg.TrackService.URL)
			}
			return nil
		},
	}
}
