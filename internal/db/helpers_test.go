package db

import (
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB opens a fresh database in a per-test temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "survey_test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	return db
}

func cleanupTestDB(t *testing.T, db *DB) {
	t.Helper()
	if err := db.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}

func strPtr(s string) *string {
	return &s
}

func intPtr(i int) *int {
	return &i
}

// addTestSession creates a session starting now and returns its id.
func addTestSession(t *testing.T, db *DB) int64 {
	t.Helper()
	id, err := db.AddSession(time.Now().Unix())
	if err != nil {
		t.Fatalf("AddSession failed: %v", err)
	}
	return id
}

// testWifiDevice builds a wifi device with radio metrics populated.
func testWifiDevice(hwAddr, ssid string) Device {
	return Device{
		Name:            ssid,
		HardwareAddr:    hwAddr,
		Characteristics: "[WPA2-PSK-CCMP][ESS]",
		ChannelWidth:    intPtr(20),
		FrequencyMHz:    intPtr(2437),
		SignalLevel:     intPtr(-61),
		Kind:            KindWifi,
	}
}
