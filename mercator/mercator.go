// Package mercator converts WGS84 coordinates into the normalized Web
// Mercator square [0,1]² and into the integer space of a single tile.
package mercator

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// MaxLatitude is the Web Mercator latitude limit; input latitudes are
	// clamped to ±MaxLatitude before projection.
	MaxLatitude = 85.05112878

	// Extent is the integer grid resolution inside one tile.
	Extent = 4096
)

// Normalized projects lon/lat to the unit square. x grows eastward, y grows
// southward; (0,0) is the north-west corner of the world.
func Normalized(lon, lat float64) (nx, ny float64) {
	if lat > MaxLatitude {
		lat = MaxLatitude
	} else if lat < -MaxLatitude {
		lat = -MaxLatitude
	}
	nx = (lon + 180) / 360
	rad := lat * math.Pi / 180
	ny = (1 - math.Log(math.Tan(rad)+1/math.Cos(rad))/math.Pi) / 2
	return nx, ny
}

// Inverse maps a normalized point back to lon/lat.
func Inverse(nx, ny float64) (lon, lat float64) {
	lon = nx*360 - 180
	lat = math.Atan(math.Sinh(math.Pi*(1-2*ny))) * 180 / math.Pi
	return lon, lat
}

// Geometry returns a copy of g with every vertex projected to normalized
// coordinates. Only the geometry types produced by the parser are accepted.
func Geometry(g orb.Geometry) orb.Geometry {
	switch geo := g.(type) {
	case orb.Point:
		return projectPoint(geo)
	case orb.LineString:
		line := make(orb.LineString, len(geo))
		for i, p := range geo {
			line[i] = projectPoint(p)
		}
		return line
	case orb.Polygon:
		poly := make(orb.Polygon, len(geo))
		for r, ring := range geo {
			out := make(orb.Ring, len(ring))
			for i, p := range ring {
				out[i] = projectPoint(p)
			}
			poly[r] = out
		}
		return poly
	}
	panic("mercator: unsupported geometry type " + g.GeoJSONType())
}

func projectPoint(p orb.Point) orb.Point {
	x, y := Normalized(p[0], p[1])
	return orb.Point{x, y}
}

// TileIndex maps one normalized axis value to a tile index at zoom z.
// Values on interior tile boundaries land in the higher tile; 1.0 (the
// world's south/east edge) is clamped to the last tile.
func TileIndex(n float64, z uint32) uint32 {
	max := uint32(1)<<z - 1
	scaled := n * float64(uint32(1)<<z)
	if scaled <= 0 {
		return 0
	}
	idx := uint32(math.Floor(scaled))
	if idx > max {
		idx = max
	}
	return idx
}

// TileLocal maps a normalized point into tile (z,x,y)'s integer grid and
// clamps the result to [0, Extent-1].
func TileLocal(nx, ny float64, z, x, y uint32) (ix, iy int32) {
	scale := float64(uint32(1) << z)
	ix = clampExtent(math.Round((nx*scale - float64(x)) * Extent))
	iy = clampExtent(math.Round((ny*scale - float64(y)) * Extent))
	return ix, iy
}

func clampExtent(v float64) int32 {
	if v < 0 {
		return 0
	}
	if v > Extent-1 {
		return Extent - 1
	}
	return int32(v)
}
