// Package geojson decodes a GeoJSON FeatureCollection into the feature
// model used by the tiling pipeline. Point, LineString and Polygon
// geometries are supported; Multi* and GeometryCollection features are
// skipped without error.
package geojson

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// World edge used when a collection has no usable features.
var DefaultBound = orb.Bound{
	Min: orb.Point{-180, -85.0511},
	Max: orb.Point{180, 85.0511},
}

// Feature pairs a geometry with its attributes. Input feature ids are
// discarded.
type Feature struct {
	Geometry   orb.Geometry
	Properties Properties
}

// Collection is an ordered set of parsed features with their lon/lat bound.
type Collection struct {
	Features []*Feature
	Bound    orb.Bound
}

// Center is the midpoint of the collection bound.
func (c *Collection) Center() orb.Point {
	return c.Bound.Center()
}

// ParseError reports malformed input. Offset is a byte offset into the
// document when the JSON itself is broken (-1 otherwise); Feature is the
// index of the offending feature (-1 when the error is not feature-scoped).
type ParseError struct {
	Offset  int64
	Feature int
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Feature >= 0 {
		return fmt.Sprintf("geojson: feature %d: %s", e.Feature, e.Msg)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("geojson: offset %d: %s", e.Offset, e.Msg)
	}
	return "geojson: " + e.Msg
}

func parseErrorf(feature int, format string, args ...interface{}) *ParseError {
	return &ParseError{Offset: -1, Feature: feature, Msg: fmt.Sprintf(format, args...)}
}

type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

type rawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Parse decodes UTF-8 JSON bytes into a Collection. The root must be a
// FeatureCollection with a features array; any malformed feature aborts the
// whole parse, no partial collection is returned.
func Parse(data []byte) (*Collection, error) {
	var root struct {
		Type     string             `json:"type"`
		Features *[]json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Offset: syntaxOffset(err), Feature: -1, Msg: err.Error()}
	}
	if root.Type != "FeatureCollection" {
		return nil, parseErrorf(-1, "root type %q is not a FeatureCollection", root.Type)
	}
	if root.Features == nil {
		return nil, parseErrorf(-1, "missing features array")
	}

	coll := &Collection{}
	for i, raw := range *root.Features {
		f, err := parseFeature(i, raw)
		if err != nil {
			return nil, err
		}
		if f == nil {
			continue // null geometry or unsupported type
		}
		coll.Features = append(coll.Features, f)
	}

	coll.Bound = collectionBound(coll.Features)
	return coll, nil
}

func syntaxOffset(err error) int64 {
	if serr, ok := err.(*json.SyntaxError); ok {
		return serr.Offset
	}
	if terr, ok := err.(*json.UnmarshalTypeError); ok {
		return terr.Offset
	}
	return -1
}

func parseFeature(idx int, raw json.RawMessage) (*Feature, error) {
	var rf rawFeature
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, parseErrorf(idx, "not an object: %v", err)
	}
	if rf.Type != "Feature" {
		return nil, parseErrorf(idx, "type %q is not a Feature", rf.Type)
	}
	if isJSONNull(rf.Geometry) {
		return nil, nil
	}

	geom, err := parseGeometry(idx, rf.Geometry)
	if err != nil {
		return nil, err
	}
	if geom == nil {
		return nil, nil // unsupported geometry type, skip silently
	}

	props, err := parseProperties(idx, rf.Properties)
	if err != nil {
		return nil, err
	}
	return &Feature{Geometry: geom, Properties: props}, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseGeometry(idx int, raw json.RawMessage) (orb.Geometry, error) {
	var rg rawGeometry
	if err := json.Unmarshal(raw, &rg); err != nil {
		return nil, parseErrorf(idx, "geometry is not an object: %v", err)
	}

	switch rg.Type {
	case "Point":
		var pos []float64
		if err := json.Unmarshal(rg.Coordinates, &pos); err != nil {
			return nil, parseErrorf(idx, "point coordinates: %v", err)
		}
		p, err := position(idx, pos)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(rg.Coordinates, &coords); err != nil {
			return nil, parseErrorf(idx, "linestring coordinates: %v", err)
		}
		if len(coords) < 2 {
			return nil, parseErrorf(idx, "linestring has %d coordinates, need at least 2", len(coords))
		}
		line := make(orb.LineString, len(coords))
		for j, pos := range coords {
			p, err := position(idx, pos)
			if err != nil {
				return nil, err
			}
			line[j] = p
		}
		return line, nil

	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(rg.Coordinates, &rings); err != nil {
			return nil, parseErrorf(idx, "polygon coordinates: %v", err)
		}
		if len(rings) == 0 {
			return nil, parseErrorf(idx, "polygon has no rings")
		}
		poly := make(orb.Polygon, len(rings))
		for r, coords := range rings {
			if len(coords) < 4 {
				return nil, parseErrorf(idx, "polygon ring %d has %d coordinates, need at least 4", r, len(coords))
			}
			ring := make(orb.Ring, len(coords))
			for j, pos := range coords {
				p, err := position(idx, pos)
				if err != nil {
					return nil, err
				}
				ring[j] = p
			}
			if ring[0] != ring[len(ring)-1] {
				return nil, parseErrorf(idx, "polygon ring %d is not closed", r)
			}
			poly[r] = ring
		}
		return poly, nil
	}

	return nil, nil
}

func position(idx int, pos []float64) (orb.Point, error) {
	if len(pos) < 2 {
		return orb.Point{}, parseErrorf(idx, "position has %d elements, need at least 2", len(pos))
	}
	// Altitude and any further elements are ignored.
	return orb.Point{pos[0], pos[1]}, nil
}

func parseProperties(idx int, raw json.RawMessage) (Properties, error) {
	props := Properties{}
	if isJSONNull(raw) {
		return props, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, parseErrorf(idx, "properties is not an object: %v", err)
	}

	for k, v := range obj {
		switch val := v.(type) {
		case nil:
			props[k] = Value{}
		case bool:
			props[k] = BoolValue(val)
		case string:
			props[k] = StringValue(val)
		case json.Number:
			props[k] = numberValue(val.String())
		default:
			// Arrays and nested objects are dropped.
		}
	}
	return props, nil
}

// GeometryBound covers every vertex of the geometry, interior polygon rings
// included.
func GeometryBound(g orb.Geometry) orb.Bound {
	if poly, ok := g.(orb.Polygon); ok {
		b := poly[0].Bound()
		for _, ring := range poly[1:] {
			b = b.Union(ring.Bound())
		}
		return b
	}
	return g.Bound()
}

func collectionBound(features []*Feature) orb.Bound {
	if len(features) == 0 {
		return DefaultBound
	}
	b := GeometryBound(features[0].Geometry)
	for _, f := range features[1:] {
		b = b.Union(GeometryBound(f.Geometry))
	}
	return b
}
