// Package tileset is the top-level entry into the tiling pipeline: GeoJSON
// bytes in, a {z}/{x}/{y}.pbf artifact list plus metadata out. It is
// synchronous, holds no global state and never logs; callers wanting
// parallelism run whole invocations on separate goroutines.
package tileset

import (
	"fmt"

	"github.com/paulmach/orb"

	"vtiler/geojson"
	"vtiler/mercator"
	"vtiler/mvt"
	"vtiler/tiler"
)

// MaxZoom is the largest supported zoom level.
const MaxZoom = 15

// DefaultLayerName is used when the caller passes an empty layer name.
const DefaultLayerName = "default"

// Tile is one emitted artifact.
type Tile struct {
	Path string
	Data []byte
}

// Metadata describes the generated set, TileJSON-style.
type Metadata struct {
	MinZoom   int
	MaxZoom   int
	LayerName string
	Bounds    [4]float64 // minLon, minLat, maxLon, maxLat
	Center    [2]float64 // lon, lat
}

// LayerStats summarizes the usable input features for metadata consumers
// (vector_layers / tilestats documents).
type LayerStats struct {
	Points   int
	Lines    int
	Polygons int
	Fields   map[string]string // attribute name → tilestats type
}

// TileSet is the result of one Generate invocation. Tiles are ordered by
// (z, x, y) ascending.
type TileSet struct {
	tiles []Tile
	meta  Metadata
	stats LayerStats
}

func (ts *TileSet) Count() int { return len(ts.tiles) }

func (ts *TileSet) Path(i int) string { return ts.tiles[i].Path }

func (ts *TileSet) Data(i int) []byte { return ts.tiles[i].Data }

// Tiles exposes the artifact list directly.
func (ts *TileSet) Tiles() []Tile { return ts.tiles }

func (ts *TileSet) Metadata() Metadata { return ts.meta }

func (ts *TileSet) Stats() LayerStats { return ts.stats }

// Empty reports whether the input parsed cleanly but produced no usable
// features.
func (ts *TileSet) Empty() bool { return ts.stats.Points+ts.stats.Lines+ts.stats.Polygons == 0 }

// RangeError reports an invalid zoom range. Fatal to the invocation.
type RangeError struct {
	MinZoom, MaxZoom int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("tileset: invalid zoom range %d..%d, want 0 <= min <= max <= %d", e.MinZoom, e.MaxZoom, MaxZoom)
}

// Generate runs the full pipeline: parse, project, bucket per zoom, encode.
// An input with zero usable features yields an empty TileSet with default
// bounds, not an error.
func Generate(geojsonBytes []byte, minZoom, maxZoom int, layerName string) (*TileSet, error) {
	if minZoom < 0 || maxZoom > MaxZoom || minZoom > maxZoom {
		return nil, &RangeError{MinZoom: minZoom, MaxZoom: maxZoom}
	}
	if layerName == "" {
		layerName = DefaultLayerName
	}

	coll, err := geojson.Parse(geojsonBytes)
	if err != nil {
		return nil, err
	}

	ts := &TileSet{
		meta: Metadata{
			MinZoom:   minZoom,
			MaxZoom:   maxZoom,
			LayerName: layerName,
			Bounds:    boundsOf(coll.Bound),
			Center:    centerOf(coll.Bound),
		},
		stats: statsOf(coll),
	}
	if len(coll.Features) == 0 {
		return ts, nil
	}

	projected := make([]*geojson.Feature, len(coll.Features))
	for i, f := range coll.Features {
		projected[i] = &geojson.Feature{
			Geometry:   mercator.Geometry(f.Geometry),
			Properties: f.Properties,
		}
	}

	for _, bucket := range tiler.Assign(projected, minZoom, maxZoom) {
		data, err := mvt.EncodeTile(layerName, bucket.Coord, bucket.Features)
		if err != nil {
			return nil, err
		}
		if data == nil {
			continue
		}
		ts.tiles = append(ts.tiles, Tile{Path: bucket.Coord.Path(), Data: data})
	}
	return ts, nil
}

func boundsOf(b orb.Bound) [4]float64 {
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func centerOf(b orb.Bound) [2]float64 {
	c := b.Center()
	return [2]float64{c[0], c[1]}
}

func statsOf(coll *geojson.Collection) LayerStats {
	stats := LayerStats{Fields: map[string]string{}}
	for _, f := range coll.Features {
		switch f.Geometry.(type) {
		case orb.Point:
			stats.Points++
		case orb.LineString:
			stats.Lines++
		case orb.Polygon:
			stats.Polygons++
		}
		for k, v := range f.Properties {
			if t := fieldType(v); t != "" {
				stats.Fields[k] = mergeFieldType(stats.Fields[k], t)
			}
		}
	}
	return stats
}

func fieldType(v geojson.Value) string {
	switch v.Kind {
	case geojson.Bool:
		return "Boolean"
	case geojson.Int, geojson.Uint, geojson.Float:
		return "Number"
	case geojson.String:
		return "String"
	}
	return ""
}

// mergeFieldType widens to tippecanoe's "Mixed" when a key carries more
// than one attribute type across features.
func mergeFieldType(prev, next string) string {
	if prev == "" || prev == next {
		return next
	}
	return "Mixed"
}
