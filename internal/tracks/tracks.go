// Package tracks queries the crowdsourced-bathymetry trackline index: survey
// lines by geographic envelope or by contributing platform name. Each line
// carries the source file name used to derive its archive object key and the
// platform that collected it.
package tracks

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/coastalgo/bathyfetch/internal/esri"
	"github.com/coastalgo/bathyfetch/internal/geo"
)

// Line is one trackline feature: the archive source file name, the vessel
// that collected it, and its path geometry.
type Line struct {
	Name     string
	Platform string
	Path     geo.Polyline
}

type Client struct {
	LayerURL string
	esri     *esri.Client
}

func NewClient(layerURL string, httpClient *http.Client) *Client {
	return &Client{
		LayerURL: layerURL,
		esri:     esri.NewClient(httpClient),
	}
}

// LinesInEnvelope returns every trackline intersecting area, sorted by
// platform then name so per-vessel grouping is deterministic.
func (c *Client) LinesInEnvelope(ctx context.Context, area geo.Rect) ([]Line, error) {
	geometry, err := esri.EnvelopeParam(esri.Envelope{
		XMin: area.NW.Lon,
		YMin: area.SE.Lat,
		XMax: area.SE.Lon,
		YMax: area.NW.Lat,
	})
	if err != nil {
		return nil, err
	}

	params := esri.BaseParams()
	params.Set("geometry", geometry)
	params.Set("geometryType", "esriGeometryEnvelope")

	features, err := c.esri.Query(ctx, c.LayerURL, params)
	if err != nil {
		return nil, err
	}
	return linesFromFeatures(features), nil
}

// LinesForPlatform returns every trackline collected by the named vessel.
// Unknown platforms yield an empty list, not an error.
func (c *Client) LinesForPlatform(ctx context.Context, platform string) ([]Line, error) {
	params := esri.BaseParams()
	params.Set("where", fmt.Sprintf("PLATFORM = '%s'", platform))

	features, err := c.esri.Query(ctx, c.LayerURL, params)
	if err != nil {
		return nil, err
	}
	return linesFromFeatures(features), nil
}

// Platforms returns the unique vessel names among lines, in the order their
// first line appears.
func Platforms(lines []Line) []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, line := range lines {
		if _, dup := seen[line.Platform]; dup {
			continue
		}
		seen[line.Platform] = struct{}{}
		names = append(names, line.Platform)
	}
	return names
}

func linesFromFeatures(features []esri.Feature) []Line {
	lines := make([]Line, 0, len(features))
	for _, feature := range features {
		name, _ := feature.Attributes["NAME"].(string)
		platform, _ := feature.Attributes["PLATFORM"].(string)
		if name == "" {
			continue
		}
		line := Line{Name: name, Platform: platform}
		if feature.Geometry != nil && len(feature.Geometry.Paths) > 0 {
			for _, coord := range feature.Geometry.Paths[0] {
				line.Path = append(line.Path, geo.Point{Lat: coord[1], Lon: coord[0]})
			}
		}
		lines = append(lines, line)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Platform != lines[j].Platform {
			return lines[i].Platform < lines[j].Platform
		}
		return lines[i].Name < lines[j].Name
	})
	return lines
}
