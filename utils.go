package main

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// saveTileFile writes one artifact under outDir, creating the {z}/{x}
// directories as needed.
func saveTileFile(outDir, tilePath string, data []byte) error {
	full := filepath.Join(outDir, filepath.FromSlash(tilePath))
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return errors.Wrapf(err, "create directory for tile %s", tilePath)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return errors.Wrapf(err, "write tile %s", tilePath)
	}
	return nil
}

// splitTilePath decomposes "{z}/{x}/{y}.pbf" back into its indices.
func splitTilePath(tilePath string) (z, x, y int, err error) {
	trimmed := strings.TrimSuffix(tilePath, ".pbf")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return 0, 0, 0, errors.Errorf("malformed tile path %q", tilePath)
	}
	if z, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "malformed tile path %q", tilePath)
	}
	if x, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "malformed tile path %q", tilePath)
	}
	if y, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, errors.Wrapf(err, "malformed tile path %q", tilePath)
	}
	return z, x, y, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// gzipBytes compresses tile data for mbtiles storage.
func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip tile")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip tile")
	}
	return buf.Bytes(), nil
}
