package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version      *int              `yaml:"version"`
	OutputRoot   *string           `yaml:"output_root"`
	Region       *string           `yaml:"region"`
	Raster       fileRaster        `yaml:"raster"`
	Trackline    fileTrackline     `yaml:"trackline"`
	ChartService fileChartService  `yaml:"chart_service"`
	TrackService fileTrackService  `yaml:"track_service"`
	HTTP         fileHTTPOptions   `yaml:"http"`
	Batch        *fileBatchCommand `yaml:"batch"`
}

type fileRaster struct {
	Bucket       *string `yaml:"bucket"`
	TilePrefix   *string `yaml:"tile_prefix"`
	SchemePrefix *string `yaml:"scheme_prefix"`
}

type fileTrackline struct {
	Bucket    *string `yaml:"bucket"`
	KeyPrefix *string `yaml:"key_prefix"`
}

type fileChartService struct {
	URL   *string `yaml:"url"`
	Bands *[]int  `yaml:"bands"`
}

type fileTrackService struct {
	URL *string `yaml:"url"`
}

type fileHTTPOptions struct {
	TimeoutSeconds *int `yaml:"timeout_seconds"`
}

type fileBatchCommand struct {
	Bin  string   `yaml:"bin"`
	Args []string `yaml:"args"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}
	if fc.OutputRoot != nil {
		cfg.OutputRoot = strings.TrimSpace(*fc.OutputRoot)
	}
	if fc.Region != nil {
		cfg.Region = strings.TrimSpace(*fc.Region)
	}
	if fc.Raster.Bucket != nil {
		cfg.Raster.Bucket = strings.TrimSpace(*fc.Raster.Bucket)
	}
	if fc.Raster.TilePrefix != nil {
		cfg.Raster.TilePrefix = strings.TrimSpace(*fc.Raster.TilePrefix)
	}
	if fc.Raster.SchemePrefix != nil {
		cfg.Raster.SchemePrefix = strings.TrimSpace(*fc.Raster.SchemePrefix)
	}
	if fc.Trackline.Bucket != nil {
		cfg.Trackline.Bucket = strings.TrimSpace(*fc.Trackline.Bucket)
	}
	if fc.Trackline.KeyPrefix != nil {
		cfg.Trackline.KeyPrefix = strings.TrimSpace(*fc.Trackline.KeyPrefix)
	}
	if fc.ChartService.URL != nil {
		cfg.ChartService.URL = strings.TrimSpace(*fc.ChartService.URL)
	}
	if fc.ChartService.Bands != nil {
		cfg.ChartService.Bands = append([]int{}, (*fc.ChartService.Bands)...)
	}
	if fc.TrackService.URL != nil {
		cfg.TrackService.URL = strings.TrimSpace(*fc.TrackService.URL)
	}
	if fc.HTTP.TimeoutSeconds != nil {
		cfg.HTTP.TimeoutSeconds = *fc.HTTP.TimeoutSeconds
	}
	if fc.Batch != nil {
		cfg.Batch = BatchCommand{
			Bin:  strings.TrimSpace(fc.Batch.Bin),
			Args: append([]string{}, fc.Batch.Args...),
		}
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["BFETCH_OUTPUT_ROOT"]); value != "" {
		cfg.OutputRoot = value
	}
	if value := strings.TrimSpace(env["BFETCH_REGION"]); value != "" {
		cfg.Region = value
	}
	if value := strings.TrimSpace(env["BFETCH_RASTER_BUCKET"]); value != "" {
		cfg.Raster.Bucket = value
	}
	if value := strings.TrimSpace(env["BFETCH_TRACKLINE_BUCKET"]); value != "" {
		cfg.Trackline.Bucket = value
	}
	if value := strings.TrimSpace(env["BFETCH_CHART_SERVICE_URL"]); value != "" {
		cfg.ChartService.URL = value
	}
	if value := strings.TrimSpace(env["BFETCH_TRACK_SERVICE_URL"]); value != "" {
		cfg.TrackService.URL = value
	}
	if value := strings.TrimSpace(env["BFETCH_HTTP_TIMEOUT_SECONDS"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid BFETCH_HTTP_TIMEOUT_SECONDS value %q: %w", value, err)
		}
		cfg.HTTP.TimeoutSeconds = parsed
	}
	return nil
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}
