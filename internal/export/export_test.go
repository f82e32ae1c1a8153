package export

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/airtrace/internal/db"
)

func newTestStore(t *testing.T) *db.DB {
	t.Helper()
	store, err := db.NewDB(filepath.Join(t.TempDir(), "survey_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBuildEmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	ds, err := Build(store)
	require.NoError(t, err)

	want := &Dataset{
		Sessions:     []db.Session{},
		Devices:      []db.Device{},
		Locations:    []db.Location{},
		Associations: []Association{},
	}
	if diff := cmp.Diff(want, ds); diff != "" {
		t.Errorf("unexpected dataset (-want +got):\n%s", diff)
	}
}

func TestBuildEmbedsAssociationRows(t *testing.T) {
	store := newTestStore(t)

	sessionID, err := store.AddSession(time.Now().Unix())
	require.NoError(t, err)
	dev, err := store.FindOrCreateDevice(db.Device{
		Name:         "homenet",
		HardwareAddr: "AA:BB:CC:DD:EE:01",
		Kind:         db.KindWifi,
	})
	require.NoError(t, err)
	loc, err := store.FindOrCreateLocation(time.Now().Unix(), "10, 20")
	require.NoError(t, err)
	_, err = store.RecordSighting(sessionID, dev.ID, loc.ID)
	require.NoError(t, err)

	ds, err := Build(store)
	require.NoError(t, err)
	assert.Len(t, ds.Sessions, 1)
	assert.Len(t, ds.Devices, 1)
	assert.Len(t, ds.Locations, 1)
	require.Len(t, ds.Associations, 1)

	a := ds.Associations[0]
	assert.Equal(t, sessionID, a.Session.ID)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", a.Device.HardwareAddr)
	assert.Equal(t, "10, 20", a.Location.Coordinates)
	assert.Equal(t, 10.0, a.Location.Lat)
	assert.Equal(t, 20.0, a.Location.Lon)
}

func TestBuildRoundTripsThroughJSON(t *testing.T) {
	store := newTestStore(t)

	sessionID, err := store.AddSession(time.Now().Unix())
	require.NoError(t, err)
	dev, err := store.FindOrCreateDevice(db.Device{
		Name:         "headset",
		HardwareAddr: "AA:BB:CC:DD:EE:09",
		Kind:         db.KindBluetooth,
	})
	require.NoError(t, err)
	loc, err := store.FindOrCreateLocation(time.Now().Unix(), "10, 20")
	require.NoError(t, err)
	_, err = store.RecordSighting(sessionID, dev.ID, loc.ID)
	require.NoError(t, err)

	want, err := Build(store)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(store, &buf))

	var got Dataset
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	if diff := cmp.Diff(want, &got); diff != "" {
		t.Errorf("dataset changed through JSON round trip (-want +got):\n%s", diff)
	}
}

func TestWriteJSONFieldNames(t *testing.T) {
	store := newTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(store, &buf))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	for _, key := range []string{"sessions", "devices", "locations", "asocsessiondevices"} {
		raw, ok := doc[key]
		require.True(t, ok, "missing key %q", key)
		assert.Equal(t, "[]", string(bytes.TrimSpace(raw)), "empty tables export as arrays")
	}
}
