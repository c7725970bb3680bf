// Package catalog answers "which raster tiles cover this area" from the
// archive's published tile scheme. The scheme is a GeoJSON tile listing
// fetched from the raster bucket, cached under the output root, and loaded
// into an in-memory R-tree for intersection queries.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/coastalgo/bathyfetch/internal/geo"
)

// Tile is one raster tile from the scheme: its name, the published GeoTIFF
// locator, and its coverage bounds in decimal degrees.
type Tile struct {
	Name       string
	GeoTIFFURL string
	MinX       float64
	MinY       float64
	MaxX       float64
	MaxY       float64
}

// Bounds returns the tile's coverage as a rectangle.
func (t Tile) Bounds() geo.Rect {
	return geo.FromBounds(t.MinX, t.MinY, t.MaxX, t.MaxY)
}

type schemeDocument struct {
	Features []schemeFeature `json:"features"`
}

type schemeFeature struct {
	Properties struct {
		Tile        string `json:"tile"`
		GeoTIFFLink string `json:"GeoTIFF_Link"`
	} `json:"properties"`
	Geometry struct {
		Coordinates [][][2]float64 `json:"coordinates"`
	} `json:"geometry"`
}

// ParseScheme decodes a tile-scheme document. Features without a name or
// usable geometry are skipped; a scheme with zero usable tiles is an error
// because every downstream query would silently return nothing.
func ParseScheme(r io.Reader) ([]Tile, error) {
	var doc schemeDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode tile scheme: %w", err)
	}

	tiles := make([]Tile, 0, len(doc.Features))
	for _, feature := range doc.Features {
		if feature.Properties.Tile == "" || len(feature.Geometry.Coordinates) == 0 {
			continue
		}
		ring := feature.Geometry.Coordinates[0]
		if len(ring) == 0 {
			continue
		}
		tile := Tile{
			Name:       feature.Properties.Tile,
			GeoTIFFURL: feature.Properties.GeoTIFFLink,
			MinX:       ring[0][0],
			MaxX:       ring[0][0],
			MinY:       ring[0][1],
			MaxY:       ring[0][1],
		}
		for _, coord := range ring {
			if coord[0] < tile.MinX {
				tile.MinX = coord[0]
			}
			if coord[0] > tile.MaxX {
				tile.MaxX = coord[0]
			}
			if coord[1] < tile.MinY {
				tile.MinY = coord[1]
			}
			if coord[1] > tile.MaxY {
				tile.MaxY = coord[1]
			}
		}
		tiles = append(tiles, tile)
	}

	if len(tiles) == 0 {
		return nil, fmt.Errorf("tile scheme holds no usable tiles")
	}
	return tiles, nil
}

type indexedTile struct {
	tile Tile
}

// Bounds implements rtreego.Spatial. The tree requires non-zero dimensions,
// so degenerate extents are padded to ~11 m at the equator.
func (t *indexedTile) Bounds() rtreego.Rect {
	const epsilon = 0.0001
	lonLength := t.tile.MaxX - t.tile.MinX
	latLength := t.tile.MaxY - t.tile.MinY
	if lonLength < epsilon {
		lonLength = epsilon
	}
	if latLength < epsilon {
		latLength = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{t.tile.MinX, t.tile.MinY}, []float64{lonLength, latLength})
	return rect
}

// Index answers intersection queries over a parsed tile scheme.
type Index struct {
	tree *rtreego.Rtree
}

func NewIndex(tiles []Tile) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	for i := range tiles {
		tree.Insert(&indexedTile{tile: tiles[i]})
	}
	return &Index{tree: tree}
}

// Query returns every tile intersecting area, sorted by name. An empty
// result means no coverage, which callers treat as a no-data outcome rather
// than a failure.
func (ix *Index) Query(area geo.Rect) []Tile {
	lonLength := area.SE.Lon - area.NW.Lon
	latLength := area.NW.Lat - area.SE.Lat
	rect, err := rtreego.NewRect(rtreego.Point{area.NW.Lon, area.SE.Lat}, []float64{lonLength, latLength})
	if err != nil {
		return nil
	}

	tiles := []Tile{}
	for _, spatial := range ix.tree.SearchIntersect(rect) {
		tiles = append(tiles, spatial.(*indexedTile).tile)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Name < tiles[j].Name })
	return tiles
}
