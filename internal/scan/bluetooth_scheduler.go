package scan

import (
	"log"
	"sync"
)

// BluetoothScheduler keeps a continuous-discovery radio running: every time
// the platform signals that a discovery cycle finished, the scheduler starts
// the next one. The loop is unbounded until Stop.
type BluetoothScheduler struct {
	src      BluetoothSource
	onDevice func(BluetoothEvent)

	mu    sync.Mutex
	armed bool
	stop  chan struct{}
}

// NewBluetoothScheduler builds a scheduler for the given source. A nil
// source is a programming error and panics at construction.
func NewBluetoothScheduler(src BluetoothSource, onDevice func(BluetoothEvent)) *BluetoothScheduler {
	if src == nil {
		panic("bluetooth source cannot be nil")
	}
	return &BluetoothScheduler{src: src, onDevice: onDevice}
}

// Start arms the scheduler and kicks off the first discovery cycle. Calling
// Start while already armed is a no-op.
func (s *BluetoothScheduler) Start() {
	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		log.Printf("bluetooth scheduler: already armed, ignoring Start")
		return
	}
	s.armed = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.run(stop)
	s.src.StartDiscovery()
}

// Stop disarms the scheduler. A discovery cycle already in flight runs to
// its natural end but is not restarted. Stop while idle is a no-op.
func (s *BluetoothScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	s.armed = false
	close(s.stop)
}

func (s *BluetoothScheduler) run(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-s.src.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case DeviceFound:
				if s.onDevice != nil {
					s.onDevice(ev)
				}
			case DiscoveryFinished:
				s.mu.Lock()
				armed := s.armed
				s.mu.Unlock()
				if armed {
					s.src.StartDiscovery()
				}
			}
		}
	}
}
