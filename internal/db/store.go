package db

import (
	"database/sql"
	"fmt"
	"log"
)

// DeviceKind discriminates the radio a device was discovered on.
type DeviceKind string

const (
	KindWifi      DeviceKind = "WIFI"
	KindBluetooth DeviceKind = "BLUETOOTH"
)

// Session is one recording run.
type Session struct {
	ID        int64  `json:"id"`
	StartUnix int64  `json:"start_unix"`
	EndUnix   *int64 `json:"end_unix"`
}

// Device is a discovered wireless device, identified by hardware address.
// Radio-specific metrics are only populated for wifi devices.
type Device struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	HardwareAddr    string     `json:"hw_addr"`
	Characteristics string     `json:"characteristics"`
	Manufacturer    *string    `json:"manufacturer"`
	ChannelWidth    *int       `json:"channel_width"`
	FrequencyMHz    *int       `json:"frequency_mhz"`
	SignalLevel     *int       `json:"signal_level"`
	Kind            DeviceKind `json:"kind"`
}

// Location is a visited coordinate pair, identified by its canonical
// "lat, lon" string.
type Location struct {
	ID            int64   `json:"id"`
	FirstSeenUnix int64   `json:"first_seen_unix"`
	Coordinates   string  `json:"coordinates"`
	Lat           float64 `json:"latitude"`
	Lon           float64 `json:"longitude"`
}

// Sighting records that a device was seen at a location during a session.
type Sighting struct {
	SessionID  int64 `json:"session_id"`
	DeviceID   int64 `json:"device_id"`
	LocationID int64 `json:"location_id"`
}

// UpsertOutcome tags the result of a find-or-create operation.
type UpsertOutcome int

const (
	// UpsertFailed means the row was neither inserted nor found; the ID is
	// meaningless. The pipeline logs and moves on.
	UpsertFailed UpsertOutcome = iota
	// UpsertInserted means a new row was created.
	UpsertInserted
	// UpsertAlreadyExists means the identity key was already on file and the
	// existing row's ID is returned.
	UpsertAlreadyExists
)

// UpsertResult is the tagged outcome of an insert-or-reuse operation.
type UpsertResult struct {
	Outcome UpsertOutcome
	ID      int64
}

// ErrInvalidLocation rejects the unset (0,0) coordinate pair; it must never
// reach durable storage.
var ErrInvalidLocation = fmt.Errorf("location coordinates are unset (0,0)")

// AddSession creates a new session starting at startUnix and returns its id.
func (db *DB) AddSession(startUnix int64) (int64, error) {
	result, err := db.Exec(`INSERT INTO sessions (start_unix) VALUES (?)`, startUnix)
	if err != nil {
		return 0, fmt.Errorf("failed to add session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session id: %w", err)
	}
	return id, nil
}

// CloseSession stamps the session's end time. Closing an already-closed
// session overwrites the end time; closing an unknown id is a silent no-op.
func (db *DB) CloseSession(id, endUnix int64) error {
	if _, err := db.Exec(`UPDATE sessions SET end_unix = ? WHERE id = ?`, endUnix, id); err != nil {
		return fmt.Errorf("failed to close session %d: %w", id, err)
	}
	return nil
}

// FindOrCreateDevice inserts the device, or returns the id already on file
// for its hardware address. The insert attempt and the fallback lookup run
// in one transaction, so two concurrent callers for the same address cannot
// both fail: the loser of the insert race falls back to the winner's row.
// An existing row is opportunistically enriched with the manufacturer if it
// has none; radio metrics from the first sighting are never overwritten.
func (db *DB) FindOrCreateDevice(d Device) (UpsertResult, error) {
	tx, err := db.Begin()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin device upsert: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback device upsert: %v", err)
		}
	}()

	result, err := tx.Exec(
		`INSERT INTO devices (name, hw_addr, characteristics, manufacturer,
			channel_width, frequency_mhz, signal_level, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.HardwareAddr, d.Characteristics, d.Manufacturer,
		d.ChannelWidth, d.FrequencyMHz, d.SignalLevel, string(d.Kind),
	)
	if err == nil {
		id, err := result.LastInsertId()
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to get device id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to commit device insert: %w", err)
		}
		return UpsertResult{Outcome: UpsertInserted, ID: id}, nil
	}
	if !isConstraintViolation(err) {
		return UpsertResult{}, fmt.Errorf("failed to insert device %s: %w", d.HardwareAddr, err)
	}

	// The hardware address is already on file: reuse that row's identity.
	var id int64
	if err := tx.QueryRow(`SELECT id FROM devices WHERE hw_addr = ?`, d.HardwareAddr).Scan(&id); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to look up existing device %s: %w", d.HardwareAddr, err)
	}
	if d.Manufacturer != nil && *d.Manufacturer != "" {
		if _, err := tx.Exec(
			`UPDATE devices SET manufacturer = ? WHERE id = ? AND (manufacturer IS NULL OR manufacturer = '')`,
			d.Manufacturer, id,
		); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to enrich device %s: %w", d.HardwareAddr, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit device lookup: %w", err)
	}
	return UpsertResult{Outcome: UpsertAlreadyExists, ID: id}, nil
}

// FindOrCreateLocation inserts a location for the coordinate string, or
// returns the id already on file for it. Coordinates are deduplicated by
// exact string match. The unset pair (0,0) is rejected with
// ErrInvalidLocation before touching storage.
func (db *DB) FindOrCreateLocation(firstSeenUnix int64, coordinates string) (UpsertResult, error) {
	lat, lon, err := parseCoordinates(coordinates)
	if err != nil {
		return UpsertResult{}, err
	}
	if lat == 0 && lon == 0 {
		return UpsertResult{}, ErrInvalidLocation
	}

	tx, err := db.Begin()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin location upsert: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback location upsert: %v", err)
		}
	}()

	result, err := tx.Exec(
		`INSERT INTO locations (first_seen_unix, coordinates) VALUES (?, ?)`,
		firstSeenUnix, coordinates,
	)
	if err == nil {
		id, err := result.LastInsertId()
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to get location id: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return UpsertResult{}, fmt.Errorf("failed to commit location insert: %w", err)
		}
		return UpsertResult{Outcome: UpsertInserted, ID: id}, nil
	}
	if !isConstraintViolation(err) {
		return UpsertResult{}, fmt.Errorf("failed to insert location %q: %w", coordinates, err)
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM locations WHERE coordinates = ?`, coordinates).Scan(&id); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to look up existing location %q: %w", coordinates, err)
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit location lookup: %w", err)
	}
	return UpsertResult{Outcome: UpsertAlreadyExists, ID: id}, nil
}

// RecordSighting stores the (session, device, location) fact. Recording the
// same triple twice is a no-op, reported as UpsertAlreadyExists.
func (db *DB) RecordSighting(sessionID, deviceID, locationID int64) (UpsertResult, error) {
	_, err := db.Exec(
		`INSERT INTO sightings (session_id, device_id, location_id) VALUES (?, ?, ?)`,
		sessionID, deviceID, locationID,
	)
	if err == nil {
		return UpsertResult{Outcome: UpsertInserted}, nil
	}
	if isConstraintViolation(err) {
		return UpsertResult{Outcome: UpsertAlreadyExists}, nil
	}
	return UpsertResult{}, fmt.Errorf("failed to record sighting (%d,%d,%d): %w",
		sessionID, deviceID, locationID, err)
}

// DeviceExists reports whether a device with the hardware address is on file.
func (db *DB) DeviceExists(hwAddr string) (bool, error) {
	var id int64
	err := db.QueryRow(`SELECT id FROM devices WHERE hw_addr = ?`, hwAddr).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check device %s: %w", hwAddr, err)
	}
	return true, nil
}

// Manufacturer returns the stored manufacturer for the hardware address, or
// the empty string if unset or unknown.
func (db *DB) Manufacturer(hwAddr string) (string, error) {
	var manufacturer sql.NullString
	err := db.QueryRow(`SELECT manufacturer FROM devices WHERE hw_addr = ?`, hwAddr).Scan(&manufacturer)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get manufacturer for %s: %w", hwAddr, err)
	}
	return manufacturer.String, nil
}

// SetManufacturer fills in the device's manufacturer if it has none. The
// field is written once; later lookups never overwrite it.
func (db *DB) SetManufacturer(hwAddr, manufacturer string) error {
	_, err := db.Exec(
		`UPDATE devices SET manufacturer = ? WHERE hw_addr = ? AND (manufacturer IS NULL OR manufacturer = '')`,
		manufacturer, hwAddr,
	)
	if err != nil {
		return fmt.Errorf("failed to set manufacturer for %s: %w", hwAddr, err)
	}
	return nil
}

// WipeAll deletes every row from every table in one transaction. Best
// effort: the caller may proceed as if wiped even on failure.
func (db *DB) WipeAll() error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin wipe: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			log.Printf("warning: failed to rollback wipe: %v", err)
		}
	}()

	for _, table := range []string{"sightings", "sessions", "locations", "devices"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe: %w", err)
	}
	return nil
}

// CountSessions returns the number of stored sessions.
func (db *DB) CountSessions() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// SessionByID returns one session, or nil if not found.
func (db *DB) SessionByID(id int64) (*Session, error) {
	var s Session
	err := db.QueryRow(`SELECT id, start_unix, end_unix FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &s.StartUnix, &s.EndUnix)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %d: %w", id, err)
	}
	return &s, nil
}

// DeviceByID returns one device, or nil if not found.
func (db *DB) DeviceByID(id int64) (*Device, error) {
	d, err := scanDevice(db.QueryRow(
		`SELECT id, name, hw_addr, characteristics, manufacturer,
			channel_width, frequency_mhz, signal_level, kind
		FROM devices WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device %d: %w", id, err)
	}
	return d, nil
}

// LocationByID returns one location, or nil if not found.
func (db *DB) LocationByID(id int64) (*Location, error) {
	var l Location
	err := db.QueryRow(`SELECT id, first_seen_unix, coordinates FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.FirstSeenUnix, &l.Coordinates)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location %d: %w", id, err)
	}
	l.Lat, l.Lon, err = parseCoordinates(l.Coordinates)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// AllSessions returns every session ordered by start time.
func (db *DB) AllSessions() ([]Session, error) {
	rows, err := db.Query(`SELECT id, start_unix, end_unix FROM sessions ORDER BY start_unix ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartUnix, &s.EndUnix); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AllDevices returns every device ordered by id.
func (db *DB) AllDevices() ([]Device, error) {
	rows, err := db.Query(
		`SELECT id, name, hw_addr, characteristics, manufacturer,
			channel_width, frequency_mhz, signal_level, kind
		FROM devices ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// AllLocations returns every location ordered by id.
func (db *DB) AllLocations() ([]Location, error) {
	rows, err := db.Query(`SELECT id, first_seen_unix, coordinates FROM locations ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.FirstSeenUnix, &l.Coordinates); err != nil {
			return nil, err
		}
		if l.Lat, l.Lon, err = parseCoordinates(l.Coordinates); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// AllSightings returns every sighting.
func (db *DB) AllSightings() ([]Sighting, error) {
	rows, err := db.Query(`SELECT session_id, device_id, location_id FROM sightings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sightings: %w", err)
	}
	defer rows.Close()

	var sightings []Sighting
	for rows.Next() {
		var s Sighting
		if err := rows.Scan(&s.SessionID, &s.DeviceID, &s.LocationID); err != nil {
			return nil, err
		}
		sightings = append(sightings, s)
	}
	return sightings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var d Device
	var characteristics, manufacturer sql.NullString
	var kind string
	err := row.Scan(&d.ID, &d.Name, &d.HardwareAddr, &characteristics, &manufacturer,
		&d.ChannelWidth, &d.FrequencyMHz, &d.SignalLevel, &kind)
	if err != nil {
		return nil, err
	}
	d.Characteristics = characteristics.String
	if manufacturer.Valid {
		d.Manufacturer = &manufacturer.String
	}
	d.Kind = DeviceKind(kind)
	return &d, nil
}
