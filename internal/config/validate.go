package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.OutputRoot) == "" {
		problems = append(problems, "output_root must be set")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		problems = append(problems, "region must be set")
	}

	if strings.TrimSpace(cfg.Raster.Bucket) == "" {
		problems = append(problems, "raster.bucket must be set")
	}
	if !strings.HasSuffix(cfg.Raster.TilePrefix, "/") {
		problems = append(problems, "raster.tile_prefix must end with /")
	}
	if !strings.HasSuffix(cfg.Raster.SchemePrefix, "/") {
		problems = append(problems, "raster.scheme_prefix must end with /")
	}

	if strings.TrimSpace(cfg.Trackline.Bucket) == "" {
		problems = append(problems, "trackline.bucket must be set")
	}
	if !strings.HasSuffix(cfg.Trackline.KeyPrefix, "/") {
		problems = append(problems, "trackline.key_prefix must end with /")
	}

	if err := validateURL(cfg.ChartService.URL); err != nil {
		problems = append(problems, fmt.Sprintf("chart_service.url is invalid: %v", err))
	}
	if len(cfg.ChartService.Bands) == 0 {
		problems = append(problems, "chart_service.bands must list at least one layer")
	}
	for _, band := range cfg.ChartService.Bands {
		if band < 0 {
			problems = append(problems, fmt.Sprintf("chart_service.bands contains negative layer %d", band))
		}
	}

	if err := validateURL(cfg.TrackService.URL); err != nil {
		problems = append(problems, fmt.Sprintf("track_service.url is invalid: %v", err))
	}

	if cfg.HTTP.TimeoutSeconds <= 0 {
		problems = append(problems, "http.timeout_seconds must be > 0")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
