// Package db owns the survey database: sessions, devices, locations and the
// sightings that tie them together. It is the only component allowed to
// mutate these tables. Writes are independently transactional; uniqueness
// violations on the identity keys are expected and resolved by an
// in-transaction fallback lookup rather than surfaced as errors.
package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		start_unix  BIGINT NOT NULL,
		end_unix    BIGINT
	);
	CREATE TABLE IF NOT EXISTS devices (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL,
		hw_addr         TEXT NOT NULL UNIQUE,
		characteristics TEXT,
		manufacturer    TEXT,
		channel_width   INTEGER,
		frequency_mhz   INTEGER,
		signal_level    INTEGER,
		kind            TEXT NOT NULL,

		CHECK (kind IN ('WIFI', 'BLUETOOTH'))
	);
	CREATE TABLE IF NOT EXISTS locations (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		first_seen_unix BIGINT NOT NULL,
		coordinates     TEXT NOT NULL UNIQUE
	);
	CREATE TABLE IF NOT EXISTS sightings (
		session_id  INTEGER NOT NULL REFERENCES sessions(id),
		device_id   INTEGER NOT NULL REFERENCES devices(id),
		location_id INTEGER NOT NULL REFERENCES locations(id),

		PRIMARY KEY (session_id, device_id, location_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sightings_location ON sightings(location_id);
	CREATE INDEX IF NOT EXISTS idx_sightings_session ON sightings(session_id);
`

// NewDB opens (creating if necessary) the survey database at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{db}, nil
}

// isConstraintViolation reports whether err is a uniqueness violation on an
// identity key (UNIQUE column or composite primary key). These are expected
// during find-or-create and are never surfaced to callers.
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// parseCoordinates splits the canonical "lat, lon" identity string back into
// a coordinate pair.
func parseCoordinates(coordinates string) (lat, lon float64, err error) {
	parts := strings.SplitN(coordinates, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed coordinates %q", coordinates)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed latitude in %q: %w", coordinates, err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed longitude in %q: %w", coordinates, err)
	}
	return lat, lon, nil
}
