package geo

import "fmt"

// Latitude shrink in degrees, and the longitude shrink expressed as a
// real-world distance in meters. The longitude correction is latitude
// dependent and computed per rectangle.
const (
	latBufferDegrees = 0.01
	lonBufferMeters  = 10.0
)

// metersPerDegreeLon approximates the length of one degree of longitude in
// meters at the given latitude on the WGS-84 ellipsoid. The quadratic fit is
// valid at typical mid-latitudes; accuracy degrades toward the poles.
func metersPerDegreeLon(lat float64) float64 {
	return -11.364*lat*lat - 245.76*lat + 112345
}

// Buffer shrinks r inward so that areas sharing only an edge with a query
// rectangle are excluded from spatial lookups. Returns ErrDegenerateRect when
// the shrunk rectangle inverts on either axis; callers must treat that as "no
// usable area" and abort the query instead of passing the result downstream.
func Buffer(r Rect) (Rect, error) {
	if err := r.Validate(); err != nil {
		return Rect{}, err
	}

	avgLat := (r.NW.Lat + r.SE.Lat) / 2
	delLon := lonBufferMeters / metersPerDegreeLon(avgLat)

	shrunk := Rect{
		NW: Point{Lat: r.NW.Lat - latBufferDegrees, Lon: r.NW.Lon + delLon},
		SE: Point{Lat: r.SE.Lat + latBufferDegrees, Lon: r.SE.Lon - delLon},
	}
	if shrunk.NW.Lat <= shrunk.SE.Lat || shrunk.NW.Lon >= shrunk.SE.Lon {
		return Rect{}, fmt.Errorf("%w: area too small for %gm buffer", ErrDegenerateRect, lonBufferMeters)
	}
	return shrunk, nil
}
