package db

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// LocationCount is one heatmap datum: a durable location and the number of
// sightings recorded there across all sessions.
type LocationCount struct {
	Location Location `json:"location"`
	Count    int      `json:"count"`
}

// HeatmapData returns the cumulative per-location sighting counts. The whole
// aggregate comes from a single query so concurrent writers can never
// produce a torn cross-table view; locations with zero sightings are
// included with a zero count.
func (db *DB) HeatmapData() ([]LocationCount, error) {
	rows, err := db.Query(`
		SELECT l.id, l.first_seen_unix, l.coordinates, count(s.location_id)
		FROM locations l
		LEFT JOIN sightings s ON s.location_id = l.id
		GROUP BY l.id
		ORDER BY l.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query heatmap data: %w", err)
	}
	defer rows.Close()

	var counts []LocationCount
	for rows.Next() {
		var lc LocationCount
		if err := rows.Scan(&lc.Location.ID, &lc.Location.FirstSeenUnix,
			&lc.Location.Coordinates, &lc.Count); err != nil {
			return nil, err
		}
		if lc.Location.Lat, lc.Location.Lon, err = parseCoordinates(lc.Location.Coordinates); err != nil {
			return nil, err
		}
		counts = append(counts, lc)
	}
	return counts, rows.Err()
}

// LocationSignal summarises the wifi signal levels observed for devices
// sighted at one location.
type LocationSignal struct {
	Location   Location `json:"location"`
	Samples    int      `json:"samples"`
	MeanSignal float64  `json:"mean_signal"`
	StdDev     float64  `json:"stddev_signal"`
}

// SignalStats returns per-location mean and standard deviation of the
// recorded wifi signal levels. Locations with no wifi sightings are omitted.
func (db *DB) SignalStats() ([]LocationSignal, error) {
	rows, err := db.Query(`
		SELECT l.id, l.first_seen_unix, l.coordinates, d.signal_level
		FROM sightings s
		JOIN locations l ON l.id = s.location_id
		JOIN devices d ON d.id = s.device_id
		WHERE d.kind = 'WIFI' AND d.signal_level IS NOT NULL
		ORDER BY l.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal stats: %w", err)
	}
	defer rows.Close()

	samples := make(map[int64][]float64)
	locations := make(map[int64]Location)
	var order []int64
	for rows.Next() {
		var l Location
		var signal float64
		if err := rows.Scan(&l.ID, &l.FirstSeenUnix, &l.Coordinates, &signal); err != nil {
			return nil, err
		}
		if _, seen := locations[l.ID]; !seen {
			if l.Lat, l.Lon, err = parseCoordinates(l.Coordinates); err != nil {
				return nil, err
			}
			locations[l.ID] = l
			order = append(order, l.ID)
		}
		samples[l.ID] = append(samples[l.ID], signal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var stats []LocationSignal
	for _, id := range order {
		levels := samples[id]
		ls := LocationSignal{
			Location:   locations[id],
			Samples:    len(levels),
			MeanSignal: stat.Mean(levels, nil),
		}
		if len(levels) > 1 {
			ls.StdDev = stat.StdDev(levels, nil)
		}
		stats = append(stats, ls)
	}
	return stats, nil
}
