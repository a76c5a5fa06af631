package mvt

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"google.golang.org/protobuf/encoding/protowire"

	"vtiler/geojson"
	"vtiler/mercator"
	"vtiler/tiler"
)

// EncodeTile builds one single-layer MVT message from the features bucketed
// into tile tc. Features must carry normalized geometry. A nil byte slice
// with a nil error means every feature degenerated away and the tile should
// not be emitted.
func EncodeTile(layerName string, tc tiler.Coord, feats []*geojson.Feature) ([]byte, error) {
	l := newLayer(layerName)
	tileBound := tc.Bound()

	for _, f := range feats {
		if !tileBound.Intersects(geojson.GeometryBound(f.Geometry)) {
			continue
		}

		geomType, cmds, err := encodeGeometry(f.Geometry, tc)
		if err != nil {
			return nil, err
		}
		if len(cmds) == 0 {
			continue
		}

		l.features = append(l.features, &feature{
			geomType: geomType,
			tags:     l.tags(f.Properties),
			geometry: cmds,
		})
	}

	if len(l.features) == 0 {
		return nil, nil
	}
	return marshalTile(l), nil
}

// tags interns the feature's properties and returns the alternating
// key/value index stream. Keys are visited in sorted order so output is
// deterministic; null values carry no tag.
func (l *layer) tags(props geojson.Properties) []uint32 {
	if len(props) == 0 {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]uint32, 0, 2*len(keys))
	for _, k := range keys {
		v := props[k]
		if v.Kind == geojson.Null {
			continue
		}
		tags = append(tags, l.keyTag(k), l.valueTag(v))
	}
	return tags
}

func encodeGeometry(g orb.Geometry, tc tiler.Coord) (GeomType, []uint32, error) {
	switch geo := g.(type) {
	case orb.Point:
		return encodePoint(geo, tc)
	case orb.LineString:
		return encodeLineString(geo, tc)
	case orb.Polygon:
		return encodePolygon(geo, tc)
	}
	return GeomUnknown, nil, encodeErrorf(InternalInvariant, "geometry type %s reached the encoder", g.GeoJSONType())
}

func tileLocal(pts []orb.Point, tc tiler.Coord) []point {
	out := make([]point, len(pts))
	for i, p := range pts {
		x, y := mercator.TileLocal(p[0], p[1], tc.Z, tc.X, tc.Y)
		out[i] = point{x, y}
	}
	return out
}

func encodePoint(p orb.Point, tc tiler.Coord) (GeomType, []uint32, error) {
	x, y := mercator.TileLocal(p[0], p[1], tc.Z, tc.X, tc.Y)
	var w geomWriter
	if err := w.moveTo(x, y); err != nil {
		return GeomPoint, nil, err
	}
	return GeomPoint, w.cmds, nil
}

func encodeLineString(line orb.LineString, tc tiler.Coord) (GeomType, []uint32, error) {
	pts := dedup(tileLocal(line, tc))
	if len(pts) < 2 {
		return GeomLineString, nil, nil
	}
	var w geomWriter
	if err := w.moveTo(pts[0].x, pts[0].y); err != nil {
		return GeomLineString, nil, err
	}
	if err := w.lineTo(pts[1:]); err != nil {
		return GeomLineString, nil, err
	}
	return GeomLineString, w.cmds, nil
}

func encodePolygon(poly orb.Polygon, tc tiler.Coord) (GeomType, []uint32, error) {
	var w geomWriter
	var emitted bool
	for _, ring := range poly {
		if len(ring) < 4 {
			continue
		}
		// The explicit GeoJSON closing vertex is implied by ClosePath.
		pts := dedup(tileLocal(ring[:len(ring)-1], tc))
		if len(pts) >= 2 && pts[0] == pts[len(pts)-1] {
			pts = pts[:len(pts)-1]
		}
		if len(pts) < 3 || signedArea2(pts) == 0 {
			continue
		}
		if err := w.moveTo(pts[0].x, pts[0].y); err != nil {
			return GeomPolygon, nil, err
		}
		if err := w.lineTo(pts[1:]); err != nil {
			return GeomPolygon, nil, err
		}
		w.closePath()
		emitted = true
	}
	if !emitted {
		return GeomPolygon, nil, nil
	}
	return GeomPolygon, w.cmds, nil
}

// MVT 2.1 field numbers.
const (
	tileLayersField = 3

	layerNameField     = 1
	layerFeaturesField = 2
	layerKeysField     = 3
	layerValuesField   = 4
	layerExtentField   = 5
	layerVersionField  = 15

	featureTagsField     = 2
	featureTypeField     = 3
	featureGeometryField = 4

	valueStringField = 1
	valueDoubleField = 3
	valueIntField    = 4
	valueUintField   = 5
	valueBoolField   = 7
)

func marshalTile(l *layer) []byte {
	body := marshalLayer(l)
	out := protowire.AppendTag(nil, tileLayersField, protowire.BytesType)
	return protowire.AppendBytes(out, body)
}

func marshalLayer(l *layer) []byte {
	var b []byte
	b = protowire.AppendTag(b, layerNameField, protowire.BytesType)
	b = protowire.AppendString(b, l.name)
	for _, f := range l.features {
		b = protowire.AppendTag(b, layerFeaturesField, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFeature(f))
	}
	for _, k := range l.keys {
		b = protowire.AppendTag(b, layerKeysField, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	for _, v := range l.values {
		b = protowire.AppendTag(b, layerValuesField, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(v))
	}
	b = protowire.AppendTag(b, layerExtentField, protowire.VarintType)
	b = protowire.AppendVarint(b, Extent)
	b = protowire.AppendTag(b, layerVersionField, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)
	return b
}

func marshalFeature(f *feature) []byte {
	var b []byte
	if len(f.tags) > 0 {
		b = protowire.AppendTag(b, featureTagsField, protowire.BytesType)
		b = protowire.AppendBytes(b, packedVarints(f.tags))
	}
	b = protowire.AppendTag(b, featureTypeField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.geomType))
	b = protowire.AppendTag(b, featureGeometryField, protowire.BytesType)
	b = protowire.AppendBytes(b, packedVarints(f.geometry))
	return b
}

func marshalValue(v geojson.Value) []byte {
	var b []byte
	switch v.Kind {
	case geojson.String:
		b = protowire.AppendTag(b, valueStringField, protowire.BytesType)
		b = protowire.AppendString(b, v.S)
	case geojson.Float:
		b = protowire.AppendTag(b, valueDoubleField, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.F))
	case geojson.Int:
		b = protowire.AppendTag(b, valueIntField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.I))
	case geojson.Uint:
		b = protowire.AppendTag(b, valueUintField, protowire.VarintType)
		b = protowire.AppendVarint(b, v.U)
	case geojson.Bool:
		b = protowire.AppendTag(b, valueBoolField, protowire.VarintType)
		if v.B {
			b = protowire.AppendVarint(b, 1)
		} else {
			b = protowire.AppendVarint(b, 0)
		}
	}
	return b
}

func packedVarints(vals []uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}
