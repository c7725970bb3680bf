// Package doctor runs preflight checks for an acquisition: endpoint
// reachability, output-root writability, and the optional batch command.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/coastalgo/bathyfetch/internal/config"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

// Doer is the slice of http.Client the endpoint checks need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Checker struct {
	LookPath      func(string) (string, error)
	ReadVersion   func(context.Context, string) (string, error)
	CheckWritable func(string) error
	HTTP          Doer
}

func NewChecker(httpClient Doer) *Checker {
	return &Checker{
		LookPath:      exec.LookPath,
		ReadVersion:   defaultReadVersion,
		CheckWritable: checkDirWritable,
		HTTP:          httpClient,
	}
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	root, err := config.ExpandPath(cfg.OutputRoot)
	if err != nil {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityError,
			Name:     "filesystem",
			Message:  fmt.Sprintf("output root is invalid: %v", err),
		})
	} else if err := c.CheckWritable(root); err != nil {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityError,
			Name:     "filesystem",
			Message:  fmt.Sprintf("output root %s is not writable: %v (run `bathyfetch init` to create it)", root, err),
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityInfo,
			Name:     "filesystem",
			Message:  fmt.Sprintf("output root %s is writable", root),
		})
	}

	report.Checks = append(report.Checks, c.endpointCheck(ctx, "chart index", cfg.ChartService.URL))
	report.Checks = append(report.Checks, c.endpointCheck(ctx, "trackline index", cfg.TrackService.URL))

	bin := strings.TrimSpace(cfg.Batch.Bin)
	if bin == "" {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityInfo,
			Name:     "batch",
			Message:  "no batch command configured; calculate runs will stop after the manifest handoff",
		})
		return report
	}

	location, err := c.LookPath(bin)
	if err != nil {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityError,
			Name:     "batch",
			Message:  fmt.Sprintf("batch command %s not found in PATH", bin),
		})
		return report
	}
	report.Checks = append(report.Checks, Check{
		Severity: SeverityInfo,
		Name:     "batch",
		Message:  fmt.Sprintf("batch command %s found at %s", bin, location),
	})

	output, err := c.ReadVersion(ctx, bin)
	if err != nil {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityWarn,
			Name:     "batch",
			Message:  fmt.Sprintf("%s version could not be read: %v", bin, err),
		})
		return report
	}
	if version, parseErr := extractVersion(output); parseErr == nil {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityInfo,
			Name:     "batch",
			Message:  fmt.Sprintf("%s version %s", bin, version),
		})
	}
	return report
}

// endpointCheck asks the MapServer for its service description. Any HTTP
// answer below 500 counts as reachable.
func (c *Checker) endpointCheck(ctx context.Context, name, serviceURL string) Check {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL+"?f=json", nil)
	if err != nil {
		return Check{Severity: SeverityError, Name: "endpoint", Message: fmt.Sprintf("%s URL is invalid: %v", name, err)}
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Check{Severity: SeverityError, Name: "endpoint", Message: fmt.Sprintf("%s is unreachable: %v", name, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return Check{Severity: SeverityError, Name: "endpoint", Message: fmt.Sprintf("%s answered %s", name, resp.Status)}
	}
	return Check{Severity: SeverityInfo, Name: "endpoint", Message: fmt.Sprintf("%s is reachable", name)}
}

func defaultReadVersion(ctx context.Context, binary string) (string, error) {
	cmd := exec.CommandContext(ctx, binary, "--version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", err
	}
	return string(output), nil
}

func checkDirWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	file, err := os.CreateTemp(path, ".bfetch-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}

var versionPattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

func extractVersion(raw string) (string, error) {
	matches := versionPattern.FindStringSubmatch(raw)
	if len(matches) != 4 {
		return "", fmt.Errorf("no semantic version found")
	}
	return fmt.Sprintf("%s.%s.%s", matches[1], matches[2], matches[3]), nil
}
