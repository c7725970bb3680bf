// Package geo holds the WGS-84 geometry primitives shared by the catalog,
// chart and trackline queries: bounding rectangles in the northern/western
// corner convention and the negative distance buffer applied before spatial
// lookups.
package geo

import (
	"errors"
	"fmt"
)

var ErrDegenerateRect = errors.New("degenerate bounding rectangle")

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Rect is a geographic bounding rectangle described by its NW and SE
// corners. A well-formed Rect satisfies NW.Lat > SE.Lat and NW.Lon < SE.Lon.
type Rect struct {
	NW Point
	SE Point
}

// Polyline is an ordered sequence of coordinates, e.g. one vessel transit.
type Polyline []Point

// NewRect builds a Rect from its corners, rejecting rectangles that are
// degenerate or inverted on either axis.
func NewRect(nw, se Point) (Rect, error) {
	r := Rect{NW: nw, SE: se}
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}
	return r, nil
}

func (r Rect) Validate() error {
	if r.NW.Lat <= r.SE.Lat {
		return fmt.Errorf("%w: NW latitude %.6f must exceed SE latitude %.6f", ErrDegenerateRect, r.NW.Lat, r.SE.Lat)
	}
	if r.NW.Lon >= r.SE.Lon {
		return fmt.Errorf("%w: NW longitude %.6f must be west of SE longitude %.6f", ErrDegenerateRect, r.NW.Lon, r.SE.Lon)
	}
	return nil
}

// Intersects reports whether the two rectangles share any area.
func (r Rect) Intersects(other Rect) bool {
	return !(other.SE.Lon < r.NW.Lon ||
		other.NW.Lon > r.SE.Lon ||
		other.NW.Lat < r.SE.Lat ||
		other.SE.Lat > r.NW.Lat)
}

// FromBounds builds a Rect from min/max axis values as reported by the tile
// catalog (x = longitude, y = latitude).
func FromBounds(minX, minY, maxX, maxY float64) Rect {
	return Rect{
		NW: Point{Lat: maxY, Lon: minX},
		SE: Point{Lat: minY, Lon: maxX},
	}
}
