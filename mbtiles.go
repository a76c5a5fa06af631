package main

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
)

// mbtilesOpen creates or opens an mbtiles archive and ensures its schema.
func mbtilesOpen(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	for _, stmt := range []string{
		"PRAGMA synchronous=0",
		"PRAGMA locking_mode=EXCLUSIVE",
		"PRAGMA journal_mode=DELETE",
		"create table if not exists tiles (zoom_level integer, tile_column integer, tile_row integer, tile_data blob);",
		"create table if not exists metadata (name text, value text);",
		"create unique index if not exists name on metadata (name);",
		"create unique index if not exists tile_index on tiles(zoom_level, tile_column, tile_row);",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return db, nil
}

func mbtilesClose(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if _, err := db.Exec("ANALYZE;"); err != nil {
		db.Close()
		return err
	}
	return db.Close()
}

// mbtilesWriteTile stores one tile. The row index is flipped to the TMS
// scheme used by the mbtiles spec.
func mbtilesWriteTile(db *sql.DB, z, x, y int, data []byte) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	row := (1 << uint(z)) - 1 - y
	_, err := db.Exec("insert or replace into tiles (zoom_level, tile_column, tile_row, tile_data) values (?, ?, ?, ?);", z, x, row, data)
	return err
}

func mbtilesWriteMetadata(db *sql.DB, pairs map[string]string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	for name, value := range pairs {
		if _, err := db.Exec("insert or replace into metadata (name, value) values (?, ?);", name, value); err != nil {
			return err
		}
	}
	return nil
}
