package tileset

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	orbmvt "github.com/paulmach/orb/encoding/mvt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"vtiler/geojson"
	"vtiler/mvt"
)

const pointAtOrigin = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}]}`

var pathRe = regexp.MustCompile(`^(\d+)/(\d+)/(\d+)\.pbf$`)

func TestSinglePointZoomZeroToOne(t *testing.T) {
	ts, err := Generate([]byte(pointAtOrigin), 0, 1, "L")
	require.NoError(t, err)
	require.Equal(t, 2, ts.Count())

	assert.Equal(t, "0/0/0.pbf", ts.Path(0))
	assert.Equal(t, "1/1/1.pbf", ts.Path(1))

	for i := 0; i < ts.Count(); i++ {
		layers, err := orbmvt.Unmarshal(ts.Data(i))
		require.NoError(t, err)
		require.Len(t, layers, 1)
		assert.Equal(t, "L", layers[0].Name)
		assert.Equal(t, uint32(2), layers[0].Version)
		assert.Equal(t, uint32(4096), layers[0].Extent)
		require.Len(t, layers[0].Features, 1)
		assert.Equal(t, "Point", layers[0].Features[0].Geometry.GeoJSONType())
	}

	meta := ts.Metadata()
	assert.Equal(t, 0, meta.MinZoom)
	assert.Equal(t, 1, meta.MaxZoom)
	assert.Equal(t, "L", meta.LayerName)
	assert.Equal(t, [4]float64{0, 0, 0, 0}, meta.Bounds)
	assert.Equal(t, [2]float64{0, 0}, meta.Center)
}

func TestSharedPropertyKeyDedupes(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[10,10]},"properties":{"name":"a"}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[20,20]},"properties":{"name":"b"}}
	]}`
	ts, err := Generate([]byte(doc), 0, 0, "L")
	require.NoError(t, err)
	require.Equal(t, 1, ts.Count())

	layers, err := orbmvt.Unmarshal(ts.Data(0))
	require.NoError(t, err)
	require.Len(t, layers[0].Features, 2)
	assert.Equal(t, "a", layers[0].Features[0].Properties["name"])
	assert.Equal(t, "b", layers[0].Features[1].Properties["name"])

	// walk the layer message: the keys table (field 3) holds "name" once,
	// the values table (field 4) holds "a" and "b"
	keys, values := 0, 0
	_, _, n := protowire.ConsumeTag(ts.Data(0))
	require.Positive(t, n)
	layerBytes, m := protowire.ConsumeBytes(ts.Data(0)[n:])
	require.Positive(t, m)
	for len(layerBytes) > 0 {
		num, typ, n := protowire.ConsumeTag(layerBytes)
		require.Positive(t, n)
		layerBytes = layerBytes[n:]
		if typ == protowire.BytesType && num == 3 {
			keys++
		} else if typ == protowire.BytesType && num == 4 {
			values++
		}
		n = protowire.ConsumeFieldValue(num, typ, layerBytes)
		require.Positive(t, n)
		layerBytes = layerBytes[n:]
	}
	assert.Equal(t, 1, keys)
	assert.Equal(t, 2, values)
}

func TestLineStringNearAntimeridian(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[170,0],[179,0]]},"properties":{}}
	]}`
	ts, err := Generate([]byte(doc), 2, 2, "roads")
	require.NoError(t, err)
	require.Equal(t, 1, ts.Count())
	assert.Equal(t, "2/3/2.pbf", ts.Path(0))

	layers, err := orbmvt.Unmarshal(ts.Data(0))
	require.NoError(t, err)
	require.Len(t, layers[0].Features, 1)
	assert.Equal(t, "LineString", layers[0].Features[0].Geometry.GeoJSONType())
}

func TestPolygonClosingVertexDropped(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]},"properties":{}}
	]}`
	ts, err := Generate([]byte(doc), 0, 0, "areas")
	require.NoError(t, err)
	require.Equal(t, 1, ts.Count())

	layers, err := orbmvt.Unmarshal(ts.Data(0))
	require.NoError(t, err)
	require.Len(t, layers[0].Features, 1)

	poly, ok := layers[0].Features[0].Geometry.(orb.Polygon)
	require.True(t, ok)
	require.Len(t, poly, 1)
	// four vertices in, four vertices out once the decoder re-closes
	assert.Len(t, poly[0], 5)
}

func TestUnsupportedGeometryYieldsEmptySet(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"MultiPoint","coordinates":[[0,0],[1,1]]},"properties":{}}
	]}`
	ts, err := Generate([]byte(doc), 0, 3, "L")
	require.NoError(t, err)
	assert.True(t, ts.Empty())
	assert.Equal(t, 0, ts.Count())
	assert.Equal(t, [4]float64{-180, -85.0511, 180, 85.0511}, ts.Metadata().Bounds)
	assert.Equal(t, [2]float64{0, 0}, ts.Metadata().Center)
}

func TestInvalidZoomRange(t *testing.T) {
	for _, zr := range [][2]int{{3, 2}, {-1, 4}, {0, 16}} {
		ts, err := Generate([]byte(pointAtOrigin), zr[0], zr[1], "L")
		assert.Nil(t, ts)
		var rerr *RangeError
		assert.ErrorAs(t, err, &rerr, "range %v", zr)
	}
}

func TestParseErrorPassesThrough(t *testing.T) {
	ts, err := Generate([]byte(`{"type":"FeatureCollection"`), 0, 1, "L")
	assert.Nil(t, ts)
	var perr *geojson.ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestEmptyLayerNameDefaults(t *testing.T) {
	ts, err := Generate([]byte(pointAtOrigin), 0, 0, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultLayerName, ts.Metadata().LayerName)

	layers, err := orbmvt.Unmarshal(ts.Data(0))
	require.NoError(t, err)
	assert.Equal(t, DefaultLayerName, layers[0].Name)
}

func TestPathsAndOrdering(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[-60,-30],[60,30]]},"properties":{"id":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[100,45]},"properties":{"id":2}}
	]}`
	ts, err := Generate([]byte(doc), 0, 4, "L")
	require.NoError(t, err)
	require.Greater(t, ts.Count(), 2)

	prevZ, prevX, prevY := -1, -1, -1
	for i := 0; i < ts.Count(); i++ {
		m := pathRe.FindStringSubmatch(ts.Path(i))
		require.NotNil(t, m, "path %q", ts.Path(i))
		z, _ := strconv.Atoi(m[1])
		x, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])

		assert.GreaterOrEqual(t, z, 0)
		assert.LessOrEqual(t, z, 4)
		assert.Less(t, x, 1<<z)
		assert.Less(t, y, 1<<z)

		less := prevZ < z ||
			(prevZ == z && prevX < x) ||
			(prevZ == z && prevX == x && prevY < y)
		assert.True(t, less, "tile %s out of order", ts.Path(i))
		prevZ, prevX, prevY = z, x, y

		// every artifact decodes to a layer with at least one feature
		layers, err := orbmvt.Unmarshal(ts.Data(i))
		require.NoError(t, err)
		require.Len(t, layers, 1)
		assert.NotEmpty(t, layers[0].Features)
	}
}

func TestStats(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"name":"a","rank":1}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{"name":"b","ok":true}},
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"rank":2.5}}
	]}`
	ts, err := Generate([]byte(doc), 0, 0, "L")
	require.NoError(t, err)

	stats := ts.Stats()
	assert.Equal(t, 2, stats.Points)
	assert.Equal(t, 1, stats.Lines)
	assert.Equal(t, 0, stats.Polygons)
	assert.Equal(t, "String", stats.Fields["name"])
	assert.Equal(t, "Number", stats.Fields["rank"])
	assert.Equal(t, "Boolean", stats.Fields["ok"])
}

func TestLargeGridStaysInRange(t *testing.T) {
	// a feature list spanning several tiles at z=5; every emitted path must
	// stay inside the grid and every tile must decode
	var sb strings.Builder
	sb.WriteString(`{"type":"FeatureCollection","features":[`)
	for i := 0; i < 20; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		lon := -170 + float64(i)*17
		lat := -80 + float64(i)*8
		fmt.Fprintf(&sb, `{"type":"Feature","geometry":{"type":"Point","coordinates":[%g,%g]},"properties":{"i":%d}}`, lon, lat, i)
	}
	sb.WriteString(`]}`)

	ts, err := Generate([]byte(sb.String()), 5, 5, "pts")
	require.NoError(t, err)
	require.NotZero(t, ts.Count())

	for _, tile := range ts.Tiles() {
		m := pathRe.FindStringSubmatch(tile.Path)
		require.NotNil(t, m)
		z, _ := strconv.Atoi(m[1])
		require.Equal(t, 5, z)
		layers, err := orbmvt.Unmarshal(tile.Data)
		require.NoError(t, err)
		assert.Equal(t, uint32(mvt.Extent), layers[0].Extent)
	}
}
