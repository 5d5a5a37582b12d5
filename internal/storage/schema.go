package storage

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		station_id   TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		state        TEXT,
		district     TEXT,
		lat          DOUBLE PRECISION,
		lon          DOUBLE PRECISION,
		station_type TEXT NOT NULL,
		source       TEXT NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		station_id    TEXT NOT NULL REFERENCES stations (station_id),
		recorded_at   TIMESTAMPTZ NOT NULL,
		rain_mm       DOUBLE PRECISION,
		river_level_m DOUBLE PRECISION,
		source        TEXT NOT NULL,
		PRIMARY KEY (station_id, recorded_at)
	)`,
	`CREATE INDEX IF NOT EXISTS stations_state_district_idx ON stations (state, district)`,
	`CREATE INDEX IF NOT EXISTS readings_recorded_at_idx ON readings (recorded_at DESC)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS stations (
		station_id   TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		state        TEXT,
		district     TEXT,
		lat          REAL,
		lon          REAL,
		station_type TEXT NOT NULL,
		source       TEXT NOT NULL,
		is_active    INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS readings (
		station_id    TEXT NOT NULL REFERENCES stations (station_id),
		recorded_at   TEXT NOT NULL,
		rain_mm       REAL,
		river_level_m REAL,
		source        TEXT NOT NULL,
		PRIMARY KEY (station_id, recorded_at)
	)`,
	`CREATE INDEX IF NOT EXISTS stations_state_district_idx ON stations (state, district)`,
	`CREATE INDEX IF NOT EXISTS readings_recorded_at_idx ON readings (recorded_at)`,
}

// Migrate creates the stations and readings tables if they do not exist.
// It is safe to run on every start.
func Migrate(ctx context.Context, db DB) error {
	stmts := postgresSchema
	if db.Dialect() == SQLite {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", db.Dialect(), err)
		}
	}
	return nil
}
