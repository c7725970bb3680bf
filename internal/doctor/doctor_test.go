package doctor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/coastalgo/bathyfetch/internal/config"
)

type fakeDoer struct {
	statuses map[string]int
	err      error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	status := http.StatusOK
	for prefix, code := range f.statuses {
		if strings.HasPrefix(req.URL.String(), prefix) {
			status = code
		}
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       http.NoBody,
	}, nil
}

func newTestChecker(t *testing.T, doer Doer) *Checker {
	t.Helper()
	return &Checker{
		LookPath:      func(string) (string, error) { return "", errors.New("not installed") },
		ReadVersion:   func(context.Context, string) (string, error) { return "", errors.New("no version") },
		CheckWritable: func(string) error { return nil },
		HTTP:          doer,
	}
}

func TestCheckHealthyConfigHasNoErrors(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()

	checker := newTestChecker(t, &fakeDoer{})
	report := checker.Check(context.Background(), cfg)

	if report.HasErrors() {
		t.Fatalf("report = %+v", report)
	}
	var batchInfo bool
	for _, check := range report.Checks {
		if check.Name == "batch" && check.Severity == SeverityInfo {
			batchInfo = true
		}
	}
	if !batchInfo {
		t.Errorf("expected an informational batch check, got %+v", report.Checks)
	}
}

func TestCheckReportsUnwritableOutputRoot(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()

	checker := newTestChecker(t, &fakeDoer{})
	checker.CheckWritable = func(string) error { return errors.New("read-only mount") }

	report := checker.Check(context.Background(), cfg)
	if !report.HasErrors() {
		t.Fatalf("expected filesystem error, got %+v", report)
	}
}

func TestCheckReportsUnreachableEndpoints(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()

	checker := newTestChecker(t, &fakeDoer{err: errors.New("dial tcp: timeout")})
	report := checker.Check(context.Background(), cfg)

	if report.ErrorCount() != 2 {
		t.Fatalf("expected both endpoint checks to fail, got %+v", report.Checks)
	}
}

func TestCheckServerErrorCountsAsUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()

	checker := newTestChecker(t, &fakeDoer{statuses: map[string]int{cfg.ChartService.URL: 503}})
	report := checker.Check(context.Background(), cfg)

	if report.ErrorCount() != 1 {
		t.Fatalf("expected one endpoint error, got %+v", report.Checks)
	}
}

func TestCheckMissingBatchBinaryIsAnError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()
	cfg.Batch.Bin = "process-bathy"

	checker := newTestChecker(t, &fakeDoer{})
	report := checker.Check(context.Background(), cfg)

	if !report.HasErrors() {
		t.Fatalf("expected missing batch binary to be an error, got %+v", report.Checks)
	}
}

func TestCheckBatchVersionIsReported(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputRoot = t.TempDir()
	cfg.Batch.Bin = "process-bathy"

	checker := newTestChecker(t, &fakeDoer{})
	checker.LookPath = func(string) (string, error) { return "/usr/local/bin/process-bathy", nil }
	checker.ReadVersion = func(context.Context, string) (string, error) { return "process-bathy 2.4.1\n", nil }

	report := checker.Check(context.Background(), cfg)
	if report.HasErrors() {
		t.Fatalf("report = %+v", report)
	}
	var sawVersion bool
	for _, check := range report.Checks {
		if check.Name == "batch" && strings.Contains(check.Message, "2.4.1") {
			sawVersion = true
		}
	}
	if !sawVersion {
		t.Errorf("expected version check, got %+v", report.Checks)
	}
}

func TestExtractVersion(t *testing.T) {
	if _, err := extractVersion("no digits here"); err == nil {
		t.Error("expected error for versionless output")
	}
	version, err := extractVersion("tool v1.12.3 (linux/amd64)")
	if err != nil || version != "1.12.3" {
		t.Errorf("version = %q, err = %v", version, err)
	}
}
