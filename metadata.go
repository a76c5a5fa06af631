package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"

	"vtiler/tileset"
)

// metadataJSON is the tippecanoe-style metadata.json document. All fields
// are strings; the layer schema travels inside the "json" field as a nested
// JSON document.
type metadataJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Minzoom     string `json:"minzoom"`
	Maxzoom     string `json:"maxzoom"`
	Center      string `json:"center"`
	Bounds      string `json:"bounds"`
	Type        string `json:"type"`
	Format      string `json:"format"`
	JSON        string `json:"json"`
}

type vectorLayer struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Minzoom     int               `json:"minzoom"`
	Maxzoom     int               `json:"maxzoom"`
	Fields      map[string]string `json:"fields"`
}

type tilestatsAttribute struct {
	Attribute string `json:"attribute"`
	Type      string `json:"type"`
}

type tilestatsLayer struct {
	Layer          string               `json:"layer"`
	Count          int                  `json:"count"`
	Geometry       string               `json:"geometry"`
	AttributeCount int                  `json:"attributeCount"`
	Attributes     []tilestatsAttribute `json:"attributes"`
}

type tilestats struct {
	LayerCount int              `json:"layerCount"`
	Layers     []tilestatsLayer `json:"layers"`
}

func buildMetadata(ts *tileset.TileSet, name, description string) *metadataJSON {
	meta := ts.Metadata()
	stats := ts.Stats()

	inner := struct {
		VectorLayers []vectorLayer `json:"vector_layers"`
		Tilestats    tilestats     `json:"tilestats"`
	}{
		VectorLayers: []vectorLayer{{
			ID:          meta.LayerName,
			Description: description,
			Minzoom:     meta.MinZoom,
			Maxzoom:     meta.MaxZoom,
			Fields:      stats.Fields,
		}},
		Tilestats: tilestats{
			LayerCount: 1,
			Layers: []tilestatsLayer{{
				Layer:          meta.LayerName,
				Count:          stats.Points + stats.Lines + stats.Polygons,
				Geometry:       dominantGeometry(stats),
				AttributeCount: len(stats.Fields),
				Attributes:     attributes(stats),
			}},
		},
	}
	innerJSON, _ := json.Marshal(inner)

	return &metadataJSON{
		Name:        name,
		Description: description,
		Version:     "1",
		Minzoom:     fmt.Sprintf("%d", meta.MinZoom),
		Maxzoom:     fmt.Sprintf("%d", meta.MaxZoom),
		Center:      fmt.Sprintf("%f,%f,%d", meta.Center[0], meta.Center[1], meta.MinZoom),
		Bounds:      fmt.Sprintf("%f,%f,%f,%f", meta.Bounds[0], meta.Bounds[1], meta.Bounds[2], meta.Bounds[3]),
		Type:        "overlay",
		Format:      "pbf",
		JSON:        string(innerJSON),
	}
}

func dominantGeometry(stats tileset.LayerStats) string {
	switch {
	case stats.Polygons >= stats.Lines && stats.Polygons >= stats.Points && stats.Polygons > 0:
		return "Polygon"
	case stats.Lines >= stats.Points && stats.Lines > 0:
		return "LineString"
	}
	return "Point"
}

func attributes(stats tileset.LayerStats) []tilestatsAttribute {
	attrs := make([]tilestatsAttribute, 0, len(stats.Fields))
	for name, typ := range stats.Fields {
		attrs = append(attrs, tilestatsAttribute{Attribute: name, Type: strings.ToLower(typ)})
	}
	return attrs
}

func writeMetadataFile(path string, md *metadataJSON) error {
	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal metadata")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write metadata.json")
	}
	return nil
}

// pairs flattens the document for the mbtiles metadata table.
func (md *metadataJSON) pairs() map[string]string {
	return map[string]string{
		"name":        md.Name,
		"description": md.Description,
		"version":     md.Version,
		"minzoom":     md.Minzoom,
		"maxzoom":     md.Maxzoom,
		"center":      md.Center,
		"bounds":      md.Bounds,
		"type":        md.Type,
		"format":      md.Format,
		"json":        md.JSON,
	}
}
