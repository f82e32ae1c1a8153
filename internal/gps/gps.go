// Package gps provides the recorder's position sources. The recorder only
// ever asks "where are we right now"; sources keep the latest fix internally.
package gps

import (
	"context"
	"sync"

	"github.com/banshee-data/airtrace/internal/correlate"
)

// PositionSource reports the most recent position fix. Coordinates returns
// the zero pair until the first fix arrives, which the recorder treats as
// "no position yet".
type PositionSource interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Coordinates() correlate.Coordinates
}

// Static always reports the same position. Used in dev mode and tests.
type Static struct {
	Coords correlate.Coordinates
}

func (s *Static) Connect(context.Context) error { return nil }
func (s *Static) Disconnect() error             { return nil }

func (s *Static) Coordinates() correlate.Coordinates { return s.Coords }

// Func adapts a closure into a PositionSource, for tests that script a
// moving receiver.
type Func func() correlate.Coordinates

func (f Func) Connect(context.Context) error      { return nil }
func (f Func) Disconnect() error                  { return nil }
func (f Func) Coordinates() correlate.Coordinates { return f() }

// fix is the shared latest-position cell used by streaming sources.
type fix struct {
	mu     sync.Mutex
	coords correlate.Coordinates
}

func (f *fix) set(c correlate.Coordinates) {
	f.mu.Lock()
	f.coords = c
	f.mu.Unlock()
}

func (f *fix) get() correlate.Coordinates {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coords
}
