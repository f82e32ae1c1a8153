package db

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAddAndCloseSession(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	start := time.Now().Unix()
	id, err := db.AddSession(start)
	if err != nil {
		t.Fatalf("AddSession failed: %v", err)
	}
	if id == 0 {
		t.Error("expected a non-zero session id")
	}

	s, err := db.SessionByID(id)
	if err != nil {
		t.Fatalf("SessionByID failed: %v", err)
	}
	if s == nil || s.StartUnix != start {
		t.Fatalf("unexpected session: %+v", s)
	}
	if s.EndUnix != nil {
		t.Error("end time should be unset until the session closes")
	}

	end := start + 60
	if err := db.CloseSession(id, end); err != nil {
		t.Fatalf("CloseSession failed: %v", err)
	}
	s, err = db.SessionByID(id)
	if err != nil {
		t.Fatalf("SessionByID failed: %v", err)
	}
	if s.EndUnix == nil || *s.EndUnix != end {
		t.Errorf("expected end time %d, got %v", end, s.EndUnix)
	}
}

func TestFindOrCreateDeviceDedupsByHardwareAddr(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	first, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X"))
	if err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}
	if first.Outcome != UpsertInserted {
		t.Fatalf("expected Inserted, got %v", first.Outcome)
	}

	// same address, different name: must reuse the existing row
	second, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X-renamed"))
	if err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}
	if second.Outcome != UpsertAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", second.Outcome)
	}
	if second.ID != first.ID {
		t.Errorf("expected reused id %d, got %d", first.ID, second.ID)
	}

	devices, err := db.AllDevices()
	if err != nil {
		t.Fatalf("AllDevices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("expected 1 device row, got %d", len(devices))
	}
}

func TestFindOrCreateDeviceEnrichesManufacturerOnly(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	first := testWifiDevice("AA:BB:CC:DD:EE:01", "X")
	if _, err := db.FindOrCreateDevice(first); err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}

	// second sighting knows the manufacturer and has different metrics
	second := testWifiDevice("AA:BB:CC:DD:EE:01", "X")
	second.Manufacturer = strPtr("Acme Radios")
	second.SignalLevel = intPtr(-80)
	if _, err := db.FindOrCreateDevice(second); err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}

	devices, err := db.AllDevices()
	if err != nil {
		t.Fatalf("AllDevices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.Manufacturer == nil || *d.Manufacturer != "Acme Radios" {
		t.Errorf("expected manufacturer enrichment, got %v", d.Manufacturer)
	}
	if d.SignalLevel == nil || *d.SignalLevel != -61 {
		t.Errorf("radio metrics from the first sighting must not be overwritten, got %v", d.SignalLevel)
	}
}

func TestFindOrCreateDeviceConcurrent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", fmt.Sprintf("w%d", i)))
			if err != nil {
				t.Errorf("concurrent upsert failed: %v", err)
				return
			}
			ids[i] = res.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent upserts returned different ids: %v", ids)
		}
	}
	devices, err := db.AllDevices()
	if err != nil {
		t.Fatalf("AllDevices failed: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("expected 1 device after concurrent upserts, got %d", len(devices))
	}
}

func TestFindOrCreateLocationDedupsByCoordinates(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	now := time.Now().Unix()
	first, err := db.FindOrCreateLocation(now, "10, 20")
	if err != nil {
		t.Fatalf("FindOrCreateLocation failed: %v", err)
	}
	if first.Outcome != UpsertInserted {
		t.Fatalf("expected Inserted, got %v", first.Outcome)
	}

	second, err := db.FindOrCreateLocation(now+60, "10, 20")
	if err != nil {
		t.Fatalf("FindOrCreateLocation failed: %v", err)
	}
	if second.Outcome != UpsertAlreadyExists || second.ID != first.ID {
		t.Errorf("revisit should reuse location %d, got %+v", first.ID, second)
	}

	locations, err := db.AllLocations()
	if err != nil {
		t.Fatalf("AllLocations failed: %v", err)
	}
	if len(locations) != 1 {
		t.Fatalf("expected 1 location, got %d", len(locations))
	}
	if locations[0].FirstSeenUnix != now {
		t.Error("first visit timestamp must be immutable")
	}
	if locations[0].Lat != 10 || locations[0].Lon != 20 {
		t.Errorf("unexpected parsed coordinates: %+v", locations[0])
	}
}

func TestFindOrCreateLocationRejectsUnsetFix(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	if _, err := db.FindOrCreateLocation(time.Now().Unix(), "0, 0"); err != ErrInvalidLocation {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}

	locations, err := db.AllLocations()
	if err != nil {
		t.Fatalf("AllLocations failed: %v", err)
	}
	if len(locations) != 0 {
		t.Errorf("(0,0) must never be persisted, got %d rows", len(locations))
	}
}

func TestRecordSightingIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	session := addTestSession(t, db)
	dev, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X"))
	if err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}
	loc, err := db.FindOrCreateLocation(time.Now().Unix(), "10, 20")
	if err != nil {
		t.Fatalf("FindOrCreateLocation failed: %v", err)
	}

	first, err := db.RecordSighting(session, dev.ID, loc.ID)
	if err != nil {
		t.Fatalf("RecordSighting failed: %v", err)
	}
	if first.Outcome != UpsertInserted {
		t.Fatalf("expected Inserted, got %v", first.Outcome)
	}

	second, err := db.RecordSighting(session, dev.ID, loc.ID)
	if err != nil {
		t.Fatalf("duplicate RecordSighting must not error: %v", err)
	}
	if second.Outcome != UpsertAlreadyExists {
		t.Fatalf("expected AlreadyExists, got %v", second.Outcome)
	}

	sightings, err := db.AllSightings()
	if err != nil {
		t.Fatalf("AllSightings failed: %v", err)
	}
	if len(sightings) != 1 {
		t.Errorf("expected exactly 1 sighting row, got %d", len(sightings))
	}
}

func TestDeviceExistsAndManufacturer(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	exists, err := db.DeviceExists("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("DeviceExists failed: %v", err)
	}
	if exists {
		t.Error("device should not exist yet")
	}

	if _, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X")); err != nil {
		t.Fatalf("FindOrCreateDevice failed: %v", err)
	}
	exists, err = db.DeviceExists("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("DeviceExists failed: %v", err)
	}
	if !exists {
		t.Error("device should exist after upsert")
	}

	if err := db.SetManufacturer("AA:BB:CC:DD:EE:01", "Acme Radios"); err != nil {
		t.Fatalf("SetManufacturer failed: %v", err)
	}
	got, err := db.Manufacturer("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("Manufacturer failed: %v", err)
	}
	if got != "Acme Radios" {
		t.Errorf("expected Acme Radios, got %q", got)
	}

	// the field is written once; a later lookup result must not replace it
	if err := db.SetManufacturer("AA:BB:CC:DD:EE:01", "Other Corp"); err != nil {
		t.Fatalf("SetManufacturer failed: %v", err)
	}
	got, err = db.Manufacturer("AA:BB:CC:DD:EE:01")
	if err != nil {
		t.Fatalf("Manufacturer failed: %v", err)
	}
	if got != "Acme Radios" {
		t.Errorf("manufacturer must not be overwritten, got %q", got)
	}
}

func TestWipeAll(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	session := addTestSession(t, db)
	dev, _ := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X"))
	loc, _ := db.FindOrCreateLocation(time.Now().Unix(), "10, 20")
	if _, err := db.RecordSighting(session, dev.ID, loc.ID); err != nil {
		t.Fatalf("RecordSighting failed: %v", err)
	}

	if err := db.WipeAll(); err != nil {
		t.Fatalf("WipeAll failed: %v", err)
	}

	n, err := db.CountSessions()
	if err != nil {
		t.Fatalf("CountSessions failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 sessions after wipe, got %d", n)
	}
	devices, _ := db.AllDevices()
	locations, _ := db.AllLocations()
	sightings, _ := db.AllSightings()
	if len(devices)+len(locations)+len(sightings) != 0 {
		t.Errorf("expected empty tables after wipe: %d devices, %d locations, %d sightings",
			len(devices), len(locations), len(sightings))
	}
}

func TestMigrateUpMatchesInlineSchema(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	// the schema already exists via NewDB; migrations must be harmless
	if err := db.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	if _, err := db.FindOrCreateDevice(testWifiDevice("AA:BB:CC:DD:EE:01", "X")); err != nil {
		t.Fatalf("store unusable after migration: %v", err)
	}
}
