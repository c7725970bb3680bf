package config

type Config struct {
	Version      int              `yaml:"version"`
	OutputRoot   string           `yaml:"output_root"`
	Region       string           `yaml:"region"`
	Raster       RasterArchive    `yaml:"raster"`
	Trackline    TracklineArchive `yaml:"trackline"`
	ChartService ChartService     `yaml:"chart_service"`
	TrackService TrackService     `yaml:"track_service"`
	HTTP         HTTPOptions      `yaml:"http"`
	Batch        BatchCommand     `yaml:"batch"`
}

// RasterArchive describes the gridded-bathymetry object store.
type RasterArchive struct {
	Bucket       string `yaml:"bucket"`
	TilePrefix   string `yaml:"tile_prefix"`
	SchemePrefix string `yaml:"scheme_prefix"`
}

// TracklineArchive describes the crowd-sourced sounding object store.
type TracklineArchive struct {
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
}

// ChartService is the chart-index MapServer endpoint. Bands are the layer
// numbers holding chart cells, queried in order.
type ChartService struct {
	URL   string `yaml:"url"`
	Bands []int  `yaml:"bands"`
}

// TrackService is the trackline-index MapServer endpoint (single layer).
type TrackService struct {
	URL string `yaml:"url"`
}

type HTTPOptions struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// BatchCommand is the downstream calculation handoff. Bin is executed with
// Args plus the two manifest paths and the output root appended.
type BatchCommand struct {
	Bin  string   `yaml:"bin"`
	Args []string `yaml:"args,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version:    1,
		OutputRoot: defaultOutputRoot(),
		Region:     "us-east-1",
		Raster: RasterArchive{
			Bucket:       "noaa-ocs-nationalbathymetry-pds",
			TilePrefix:   "BlueTopo/",
			SchemePrefix: "BlueTopo/_BlueTopo_Tile_Scheme/",
		},
		Trackline: TracklineArchive{
			Bucket:    "noaa-dcdb-bathymetry-pds",
			KeyPrefix: "csb/csv/",
		},
		ChartService: ChartService{
			URL:   "https://gis.charttools.noaa.gov/arcgis/rest/services/MarineChart_Services/Status_New_NOAA_ENCs/MapServer",
			Bands: []int{1, 2, 3, 4},
		},
		TrackService: TrackService{
			URL: "https://gis.ngdc.noaa.gov/arcgis/rest/services/csb/MapServer/1",
		},
		HTTP:  HTTPOptions{TimeoutSeconds: 120},
		Batch: BatchCommand{},
	}
}
