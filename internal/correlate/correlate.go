// Package correlate decides which survey location a detection batch belongs
// to. A Location accumulates the devices sighted while the observer stays at
// one coordinate pair; moving to a new coordinate pair starts a fresh
// Location and clears the previous visit's in-memory device set.
package correlate

import (
	"strconv"
	"time"
)

// Coordinates is a latitude/longitude pair. The zero value means "no fix":
// a position source that has not resolved yet reports exactly (0,0), and
// such coordinates are never persisted.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the coordinates represent a resolved position fix.
// Exactly (0,0) is treated as unset.
func (c Coordinates) Valid() bool {
	return c.Lat != 0 || c.Lon != 0
}

// String renders the pair in the canonical "lat, lon" form used as the
// location identity key in the store. Formatting must be byte-stable:
// equal coordinates always produce equal strings.
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Location is one visited spot and the devices sighted while stationary
// there. The device set is transient bookkeeping to avoid re-processing a
// device on every scan at the same spot; durable history lives in the store.
type Location struct {
	FirstSeen time.Time
	Coords    Coordinates

	seen map[string]struct{}
}

// NewLocation returns a Location first visited at ts.
func NewLocation(ts time.Time, coords Coordinates) *Location {
	return &Location{
		FirstSeen: ts,
		Coords:    coords,
		seen:      make(map[string]struct{}),
	}
}

// Saw reports whether the device with the given hardware address has already
// been sighted during this visit.
func (l *Location) Saw(hwAddr string) bool {
	_, ok := l.seen[hwAddr]
	return ok
}

// Record marks the device as sighted during this visit.
func (l *Location) Record(hwAddr string) {
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	l.seen[hwAddr] = struct{}{}
}

// DeviceCount returns the number of distinct devices sighted this visit.
func (l *Location) DeviceCount() int {
	return len(l.seen)
}

// ClearDevices drops the visit's device set. Called when the observer moves
// on; the sightings themselves are already durable by then.
func (l *Location) ClearDevices() {
	l.seen = make(map[string]struct{})
}

// Resolve assigns a detection batch to a location. If last is non-nil and
// its coordinates exactly equal coords the observer is stationary: the same
// Location (with its accumulated device set) is returned and isNew is false.
// Otherwise a new Location stamped with ts is returned, isNew is true, and
// the previous visit's device set is cleared.
//
// Resolve never rejects (0,0): an unresolved fix still gets an in-memory
// Location so transient sightings can be counted. Callers must check
// Coords.Valid() before persisting or aggregating.
func Resolve(coords Coordinates, last *Location, ts time.Time) (loc *Location, isNew bool) {
	if last != nil && last.Coords == coords {
		return last, false
	}
	if last != nil {
		last.ClearDevices()
	}
	return NewLocation(ts, coords), true
}
