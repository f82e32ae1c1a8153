// Package export renders the whole survey database as one portable dataset,
// the shape consumed by external mapping tools.
package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/airtrace/internal/db"
)

// Association is one sighting with its session, device and location rows
// embedded, so a consumer needs no joins.
type Association struct {
	Session  db.Session  `json:"session"`
	Device   db.Device   `json:"device"`
	Location db.Location `json:"location"`
}

// Dataset is the full database contents in one document. Associations keep
// their historical "asocsessiondevices" name for compatibility with existing
// consumers of the export format.
type Dataset struct {
	Sessions     []db.Session  `json:"sessions"`
	Devices      []db.Device   `json:"devices"`
	Locations    []db.Location `json:"locations"`
	Associations []Association `json:"asocsessiondevices"`
}

// Build reads every table into a Dataset. Empty tables export as empty
// arrays, not null.
func Build(store *db.DB) (*Dataset, error) {
	sessions, err := store.AllSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	devices, err := store.AllDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to export devices: %w", err)
	}
	locations, err := store.AllLocations()
	if err != nil {
		return nil, fmt.Errorf("failed to export locations: %w", err)
	}
	sightings, err := store.AllSightings()
	if err != nil {
		return nil, fmt.Errorf("failed to export sightings: %w", err)
	}

	sessionByID := make(map[int64]db.Session, len(sessions))
	for _, s := range sessions {
		sessionByID[s.ID] = s
	}
	deviceByID := make(map[int64]db.Device, len(devices))
	for _, d := range devices {
		deviceByID[d.ID] = d
	}
	locationByID := make(map[int64]db.Location, len(locations))
	for _, l := range locations {
		locationByID[l.ID] = l
	}

	associations := make([]Association, 0, len(sightings))
	for _, s := range sightings {
		session, ok := sessionByID[s.SessionID]
		if !ok {
			return nil, fmt.Errorf("sighting references unknown session %d", s.SessionID)
		}
		device, ok := deviceByID[s.DeviceID]
		if !ok {
			return nil, fmt.Errorf("sighting references unknown device %d", s.DeviceID)
		}
		location, ok := locationByID[s.LocationID]
		if !ok {
			return nil, fmt.Errorf("sighting references unknown location %d", s.LocationID)
		}
		associations = append(associations, Association{
			Session:  session,
			Device:   device,
			Location: location,
		})
	}

	ds := &Dataset{
		Sessions:     sessions,
		Devices:      devices,
		Locations:    locations,
		Associations: associations,
	}
	if ds.Sessions == nil {
		ds.Sessions = []db.Session{}
	}
	if ds.Devices == nil {
		ds.Devices = []db.Device{}
	}
	if ds.Locations == nil {
		ds.Locations = []db.Location{}
	}
	return ds, nil
}

// WriteJSON builds the dataset and writes it to w as indented JSON.
func WriteJSON(store *db.DB, w io.Writer) error {
	ds, err := Build(store)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ds); err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	return nil
}
