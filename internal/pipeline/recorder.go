// Package pipeline wires the radios, the position source and the store into
// a survey recorder. One Recorder owns one recording session at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/airtrace/internal/correlate"
	"github.com/banshee-data/airtrace/internal/db"
	"github.com/banshee-data/airtrace/internal/gps"
	"github.com/banshee-data/airtrace/internal/manuf"
	"github.com/banshee-data/airtrace/internal/scan"
)

// Config assembles a Recorder's collaborators. Store and Position are
// required; either radio may be nil when the survey only covers one band.
// Resolver may be nil to skip manufacturer lookups entirely.
type Config struct {
	Store     *db.DB
	Wifi      scan.WifiSource
	Bluetooth scan.BluetoothSource
	Position  gps.PositionSource
	Resolver  manuf.Resolver

	// WifiInterval is the minimum spacing between wifi scan requests.
	// Zero means unthrottled.
	WifiInterval time.Duration

	// OnStop, if set, is called with the refreshed heatmap after a session
	// closes.
	OnStop func([]db.LocationCount)
}

// Recorder runs recording sessions: it drives the radios, correlates
// detections with the current position and persists the deduplicated
// results.
type Recorder struct {
	cfg Config

	wifiSched *scan.WifiScheduler
	btSched   *scan.BluetoothScheduler

	mu          sync.Mutex
	running     bool
	sessionID   int64
	current     *correlate.Location
	discoveries int

	lookups sync.WaitGroup
}

// NewRecorder validates cfg and returns an idle recorder.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("recorder requires a store")
	}
	if cfg.Position == nil {
		return nil, fmt.Errorf("recorder requires a position source")
	}
	if cfg.Wifi == nil && cfg.Bluetooth == nil {
		return nil, fmt.Errorf("recorder requires at least one radio")
	}

	r := &Recorder{cfg: cfg}
	if cfg.Wifi != nil {
		sched, err := scan.NewWifiScheduler(cfg.Wifi, cfg.WifiInterval, r.handleWifiBatch)
		if err != nil {
			return nil, err
		}
		r.wifiSched = sched
	}
	if cfg.Bluetooth != nil {
		r.btSched = scan.NewBluetoothScheduler(cfg.Bluetooth, r.handleBluetoothEvent)
	}
	return r, nil
}

// Start opens a new session and arms the radios. Starting a running recorder
// is an error.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder already running")
	}
	r.mu.Unlock()

	if err := r.cfg.Position.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect position source: %w", err)
	}

	sessionID, err := r.cfg.Store.AddSession(time.Now().Unix())
	if err != nil {
		r.cfg.Position.Disconnect()
		return fmt.Errorf("failed to open session: %w", err)
	}

	r.mu.Lock()
	r.running = true
	r.sessionID = sessionID
	r.current = nil
	r.discoveries = 0
	r.mu.Unlock()

	log.Printf("session %d started", sessionID)
	if r.wifiSched != nil {
		r.wifiSched.Start()
	}
	if r.btSched != nil {
		r.btSched.Start()
	}
	return nil
}

// Stop disarms the radios, closes the session and refreshes the heatmap.
// Stopping an idle recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	sessionID := r.sessionID
	discoveries := r.discoveries
	r.current = nil
	r.mu.Unlock()

	if r.wifiSched != nil {
		r.wifiSched.Stop()
	}
	if r.btSched != nil {
		r.btSched.Stop()
	}
	if err := r.cfg.Position.Disconnect(); err != nil {
		log.Printf("failed to disconnect position source: %v", err)
	}

	// let in-flight manufacturer lookups land before the session closes
	r.lookups.Wait()

	if err := r.cfg.Store.CloseSession(sessionID, time.Now().Unix()); err != nil {
		return err
	}
	log.Printf("session %d closed after %d new discoveries", sessionID, discoveries)

	counts, err := r.cfg.Store.HeatmapData()
	if err != nil {
		return fmt.Errorf("failed to refresh heatmap: %w", err)
	}
	if r.cfg.OnStop != nil {
		r.cfg.OnStop(counts)
	}
	return nil
}

// Discoveries returns the number of devices first seen during the current
// (or most recent) session.
func (r *Recorder) Discoveries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discoveries
}

// SessionID returns the id of the current (or most recent) session, or zero
// before the first Start.
func (r *Recorder) SessionID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// ChangeWifiInterval adjusts the wifi scan spacing on a running recorder.
func (r *Recorder) ChangeWifiInterval(interval time.Duration) error {
	if r.wifiSched == nil {
		return fmt.Errorf("no wifi radio configured")
	}
	return r.wifiSched.ChangeInterval(interval)
}

func (r *Recorder) handleWifiBatch(batch []scan.WifiDetection) {
	batchID := uuid.NewString()
	log.Printf("wifi batch %s: %d detections", batchID, len(batch))
	for _, det := range batch {
		d := db.Device{
			Name:            det.SSID,
			HardwareAddr:    det.BSSID,
			Characteristics: det.Capabilities,
			Kind:            db.KindWifi,
		}
		cw, freq, sig := det.ChannelWidth, det.FrequencyMHz, det.SignalLevel
		d.ChannelWidth, d.FrequencyMHz, d.SignalLevel = &cw, &freq, &sig
		if err := r.process(d); err != nil {
			log.Printf("wifi batch %s: failed to process %s: %v", batchID, det.BSSID, err)
		}
	}
}

func (r *Recorder) handleBluetoothEvent(ev scan.BluetoothEvent) {
	d := db.Device{
		Name:            ev.Name,
		HardwareAddr:    ev.HardwareAddr,
		Characteristics: ev.DeviceClass,
		Kind:            db.KindBluetooth,
	}
	if err := r.process(d); err != nil {
		log.Printf("failed to process bluetooth device %s: %v", ev.HardwareAddr, err)
	}
}

// process routes one detection: correlate it with the current position, skip
// it if already sighted at this spot, then persist when the fix is valid.
func (r *Recorder) process(d db.Device) error {
	now := time.Now()
	coords := r.cfg.Position.Coordinates()

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	sessionID := r.sessionID
	loc, isNew := correlate.Resolve(coords, r.current, now)
	if isNew {
		r.current = loc
	}
	if loc.Saw(d.HardwareAddr) {
		r.mu.Unlock()
		return nil
	}
	loc.Record(d.HardwareAddr)
	r.mu.Unlock()

	known, err := r.cfg.Store.DeviceExists(d.HardwareAddr)
	if err != nil {
		return err
	}
	if !known {
		r.mu.Lock()
		r.discoveries++
		r.mu.Unlock()
	}

	// the in-memory visit keeps counting even without a fix, but nothing
	// is persisted for an unresolved position
	if !coords.Valid() {
		return nil
	}

	locResult, err := r.cfg.Store.FindOrCreateLocation(loc.FirstSeen.Unix(), loc.Coords.String())
	if err != nil {
		if errors.Is(err, db.ErrInvalidLocation) {
			return nil
		}
		return err
	}
	devResult, err := r.cfg.Store.FindOrCreateDevice(d)
	if err != nil {
		return err
	}
	if _, err := r.cfg.Store.RecordSighting(sessionID, devResult.ID, locResult.ID); err != nil {
		return err
	}

	if r.cfg.Resolver != nil && devResult.Outcome == db.UpsertInserted {
		r.lookupManufacturer(d.HardwareAddr)
	}
	return nil
}

// lookupManufacturer resolves the vendor for a newly stored device off the
// hot path. Failures are recorded as manuf.NotFound so the same address is
// never retried.
func (r *Recorder) lookupManufacturer(hwAddr string) {
	r.lookups.Add(1)
	go func() {
		defer r.lookups.Done()

		name, err := r.cfg.Resolver.Lookup(context.Background(), hwAddr)
		if err != nil {
			if !errors.Is(err, manuf.ErrNotFound) {
				log.Printf("manufacturer lookup for %s failed: %v", hwAddr, err)
			}
			name = manuf.NotFound
		}
		if err := r.cfg.Store.SetManufacturer(hwAddr, name); err != nil {
			log.Printf("failed to store manufacturer for %s: %v", hwAddr, err)
		}
	}()
}
