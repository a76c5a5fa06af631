// Package tiler assigns projected features to the tiles their geometry
// touches, one pass per zoom level. Geometry is duplicated whole into every
// covering tile; clipping is left to the encoder's per-vertex clamp.
package tiler

import (
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"vtiler/geojson"
	"vtiler/mercator"
)

// Coord addresses one tile in the {z}/{x}/{y} scheme.
type Coord struct {
	Z, X, Y uint32
}

// Path is the artifact path for the tile.
func (c Coord) Path() string {
	return fmt.Sprintf("%d/%d/%d.pbf", c.Z, c.X, c.Y)
}

// Bound is the tile's extent in normalized coordinates.
func (c Coord) Bound() orb.Bound {
	n := float64(uint32(1) << c.Z)
	return orb.Bound{
		Min: orb.Point{float64(c.X) / n, float64(c.Y) / n},
		Max: orb.Point{float64(c.X+1) / n, float64(c.Y+1) / n},
	}
}

// Bucket holds the features covering one tile, in input order.
type Bucket struct {
	Coord    Coord
	Features []*geojson.Feature
}

// Assign buckets features by tile for every zoom in [minZoom, maxZoom].
// Features must already be in normalized coordinates. Buckets come back
// ordered by (z, x, y) ascending.
func Assign(features []*geojson.Feature, minZoom, maxZoom int) []Bucket {
	var out []Bucket
	for z := minZoom; z <= maxZoom; z++ {
		out = append(out, assignZoom(features, uint32(z))...)
	}
	return out
}

func assignZoom(features []*geojson.Feature, z uint32) []Bucket {
	buckets := make(map[Coord]*Bucket)
	add := func(c Coord, f *geojson.Feature) {
		if n := uint32(1) << z; c.X >= n || c.Y >= n {
			panic(fmt.Sprintf("tiler: tile %d/%d/%d out of range", c.Z, c.X, c.Y))
		}
		b, ok := buckets[c]
		if !ok {
			b = &Bucket{Coord: c}
			buckets[c] = b
		}
		b.Features = append(b.Features, f)
	}

	for _, f := range features {
		if p, ok := f.Geometry.(orb.Point); ok {
			// A point lands in exactly one tile.
			add(Coord{z, mercator.TileIndex(p[0], z), mercator.TileIndex(p[1], z)}, f)
			continue
		}
		b := geojson.GeometryBound(f.Geometry)
		xmin, xmax := coverage(b.Min[0], b.Max[0], z)
		ymin, ymax := coverage(b.Min[1], b.Max[1], z)
		for x := xmin; x <= xmax; x++ {
			for y := ymin; y <= ymax; y++ {
				add(Coord{z, x, y}, f)
			}
		}
	}

	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Coord, out[j].Coord
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return out
}

// coverage returns the range of tile indices whose extent intersects
// [lo, hi] on one axis. Boundary values belong to the higher-index tile,
// the same rule TileIndex applies to points, so a degenerate bound sitting
// exactly on a tile edge covers exactly one tile.
func coverage(lo, hi float64, z uint32) (uint32, uint32) {
	n := uint32(1) << z
	scale := float64(n)
	return clampIndex(math.Floor(lo*scale), n), clampIndex(math.Floor(hi*scale), n)
}

func clampIndex(v float64, n uint32) uint32 {
	if v <= 0 {
		return 0
	}
	if v >= float64(n) {
		return n - 1
	}
	idx := uint32(v)
	if idx > n-1 {
		idx = n - 1
	}
	return idx
}
