package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/coastalgo/bathyfetch/internal/config"
	"github.com/coastalgo/bathyfetch/internal/doctor"
	"github.com/coastalgo/bathyfetch/internal/exitcode"
)

func newDoctorCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check endpoints, output root, and the batch command",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}
			if err := config.Validate(cfg); err != nil {
				return withExitCode(exitcode.InvalidConfig, err)
			}

			checker := doctor.NewChecker(&http.Client{
				Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
			})
			report := checker.Check(cmd.Context(), cfg)

			if app.Opts.JSON {
				encoded, _ := json.Marshal(report)
				fmt.Fprintln(app.IO.Out, string(encoded))
			} else {
				for _, check := range report.Checks {
					fmt.Fprintf(app.IO.Out, "[%s] %s: %s\n", check.Severity, check.Name, check.Message)
				}
			}

			if report.HasErrors() {
				return withExitCode(exitcode.RuntimeFailure,
					fmt.Errorf("%d preflight checks failed", report.ErrorCount()))
			}
			return nil
		},
	}
}
