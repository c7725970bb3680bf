// Package charts queries the chart-index service for chart cells: by
// geographic envelope, by cell name, and by trackline intersection. Queries
// run across the four fixed resolution bands and de-duplicate cell names
// across bands. Any service failure is fatal to the run; a partial chart
// list is never trusted.
package charts

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/coastalgo/bathyfetch/internal/esri"
	"github.com/coastalgo/bathyfetch/internal/geo"
)

// Cell is one chart cell from the index: a name unique per catalog and its
// coverage rectangle.
type Cell struct {
	Name   string
	Bounds geo.Rect
}

// BadCellNameError reports a chart identifier whose layout does not encode a
// usable resolution band.
type BadCellNameError struct {
	Name   string
	Reason string
}

func (e *BadCellNameError) Error() string {
	return fmt.Sprintf("invalid chart cell name %q: %s", e.Name, e.Reason)
}

type Client struct {
	BaseURL string
	Bands   []int
	esri    *esri.Client
}

func NewClient(baseURL string, bands []int, httpClient *http.Client) *Client {
	return &Client{
		BaseURL: baseURL,
		Bands:   bands,
		esri:    esri.NewClient(httpClient),
	}
}

func (c *Client) layerURL(band int) string {
	return fmt.Sprintf("%s/%d", c.BaseURL, band)
}

// CellsInEnvelope returns every chart cell intersecting area, across all
// bands, de-duplicated by name and sorted for deterministic output.
func (c *Client) CellsInEnvelope(ctx context.Context, area geo.Rect) ([]Cell, error) {
	geometry, err := esri.EnvelopeParam(esri.Envelope{
		XMin: area.NW.Lon,
		YMin: area.SE.Lat,
		XMax: area.SE.Lon,
		YMax: area.NW.Lat,
	})
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	cells := []Cell{}
	for _, band := range c.Bands {
		params := esri.BaseParams()
		params.Set("geometry", geometry)
		params.Set("geometryType", "esriGeometryEnvelope")

		features, err := c.esri.Query(ctx, c.layerURL(band), params)
		if err != nil {
			return nil, err
		}
		for _, feature := range features {
			cell, ok := cellFromFeature(feature)
			if !ok {
				continue
			}
			if _, dup := seen[cell.Name]; dup {
				continue
			}
			seen[cell.Name] = struct{}{}
			cells = append(cells, cell)
		}
	}

	sort.Slice(cells, func(i, j int) bool { return cells[i].Name < cells[j].Name })
	return cells, nil
}

// CellByName resolves a single chart cell. The resolution band is encoded in
// the third character of the name (usage band 2-5 maps to service layers
// 1-4).
func (c *Client) CellByName(ctx context.Context, name string) (Cell, error) {
	band, err := BandForCellName(name)
	if err != nil {
		return Cell{}, err
	}

	params := esri.BaseParams()
	params.Set("where", fmt.Sprintf("CELL_NAME = '%s'", name))

	features, err := c.esri.Query(ctx, c.layerURL(band), params)
	if err != nil {
		return Cell{}, err
	}
	for _, feature := range features {
		cell, ok := cellFromFeature(feature)
		if !ok {
			continue
		}
		if cell.Name == name {
			return cell, nil
		}
	}
	return Cell{}, &BadCellNameError{Name: name, Reason: "not present in chart index"}
}

// CellsForTracklines returns the union of chart cells any of the lines
// intersects, across all bands, de-duplicated and sorted.
func (c *Client) CellsForTracklines(ctx context.Context, lines []geo.Polyline) ([]string, error) {
	paths := make([][][2]float64, 0, len(lines))
	for _, line := range lines {
		path := make([][2]float64, 0, len(line))
		for _, pt := range line {
			path = append(path, [2]float64{pt.Lon, pt.Lat})
		}
		paths = append(paths, path)
	}
	geometry, err := esri.PathsParam(paths)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	names := []string{}
	for _, band := range c.Bands {
		params := esri.BaseParams()
		params.Set("geometry", geometry)
		params.Set("geometryType", "esriGeometryPolyline")
		params.Set("returnGeometry", "false")

		features, err := c.esri.QueryPost(ctx, c.layerURL(band), params)
		if err != nil {
			return nil, err
		}
		for _, feature := range features {
			name, _ := feature.Attributes["cell_name"].(string)
			if name == "" {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// BandForCellName maps a cell name like US4MA23M to its service layer.
// Usage band digit d resolves to layer d-1: the service exposes the four
// bands as layers 1-4 while the digits run 2-5. Querying layer d itself
// looks plausible but targets the next-finer band, so keep the offset.
func BandForCellName(name string) (int, error) {
	if len(name) < 3 {
		return 0, &BadCellNameError{Name: name, Reason: "too short to carry a usage band"}
	}
	digit := name[2]
	if digit < '2' || digit > '5' {
		return 0, &BadCellNameError{Name: name, Reason: "third character must be a usage band between 2 and 5"}
	}
	return int(digit-'0') - 1, nil
}

// cellFromFeature extracts the cell name and bounding rectangle from an
// index feature. The first ring's coordinates bound the cell; features
// without usable geometry or name are skipped.
func cellFromFeature(feature esri.Feature) (Cell, bool) {
	name, _ := feature.Attributes["cell_name"].(string)
	if name == "" {
		return Cell{}, false
	}
	if feature.Geometry == nil || len(feature.Geometry.Rings) == 0 || len(feature.Geometry.Rings[0]) == 0 {
		return Cell{}, false
	}

	ring := feature.Geometry.Rings[0]
	minLon, maxLon := ring[0][0], ring[0][0]
	minLat, maxLat := ring[0][1], ring[0][1]
	for _, coord := range ring {
		if coord[0] < minLon {
			minLon = coord[0]
		}
		if coord[0] > maxLon {
			maxLon = coord[0]
		}
		if coord[1] < minLat {
			minLat = coord[1]
		}
		if coord[1] > maxLat {
			maxLat = coord[1]
		}
	}

	return Cell{Name: name, Bounds: geo.FromBounds(minLon, minLat, maxLon, maxLat)}, true
}
