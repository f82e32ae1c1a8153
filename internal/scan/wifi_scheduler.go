package scan

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// WifiScheduler drives a WifiSource in a loop while enforcing a minimum
// spacing between scan requests: a request is issued immediately when at
// least the configured interval has passed since the last one, otherwise it
// is deferred to fire exactly at lastScan+interval. A pending deferred
// request is cancelled and replaced, never stacked.
//
// An interval of zero means no throttling: every results event triggers the
// next scan immediately.
type WifiScheduler struct {
	src       WifiSource
	onResults func([]WifiDetection)

	mu       sync.Mutex
	interval time.Duration
	armed    bool
	lastScan time.Time
	timer    *time.Timer
	stop     chan struct{}

	now func() time.Time
}

// NewWifiScheduler builds a scheduler for the given source. A negative
// interval or a nil source is a programming error.
func NewWifiScheduler(src WifiSource, interval time.Duration, onResults func([]WifiDetection)) (*WifiScheduler, error) {
	if src == nil {
		return nil, fmt.Errorf("wifi source cannot be nil")
	}
	if interval < 0 {
		return nil, fmt.Errorf("scan interval cannot be negative: %v", interval)
	}
	return &WifiScheduler{
		src:       src,
		onResults: onResults,
		interval:  interval,
		now:       time.Now,
	}, nil
}

// Start arms the scheduler and issues the first scan request. Calling Start
// while already armed is a no-op.
func (s *WifiScheduler) Start() {
	s.mu.Lock()
	if s.armed {
		s.mu.Unlock()
		log.Printf("wifi scheduler: already armed, ignoring Start")
		return
	}
	s.armed = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.run(stop)
	s.initiateScan()
}

// Stop disarms the scheduler and cancels any pending deferred scan. A scan
// request already handed to the source is not revoked; its results are
// simply dropped. Stop while idle is a no-op.
func (s *WifiScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	s.armed = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	close(s.stop)
}

// ChangeInterval adjusts the spacing between scan requests. A negative
// interval is rejected.
func (s *WifiScheduler) ChangeInterval(interval time.Duration) error {
	if interval < 0 {
		return fmt.Errorf("scan interval cannot be negative: %v", interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	return nil
}

// Interval returns the current minimum spacing.
func (s *WifiScheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *WifiScheduler) run(stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-s.src.ResultsAvailable():
			s.mu.Lock()
			armed := s.armed
			s.mu.Unlock()
			if !armed {
				return
			}
			if batch := s.src.Results(); len(batch) > 0 && s.onResults != nil {
				s.onResults(batch)
			}
			s.initiateScan()
		}
	}
}

// initiateScan issues a scan request now if the minimum spacing has elapsed,
// otherwise (re)arms the single deferred timer for the remainder.
func (s *WifiScheduler) initiateScan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	now := s.now()
	elapsed := now.Sub(s.lastScan)
	if s.interval == 0 || elapsed >= s.interval {
		s.lastScan = now
		go s.src.RequestScan()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.interval-elapsed, s.deferredScan)
}

func (s *WifiScheduler) deferredScan() {
	s.mu.Lock()
	if !s.armed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.lastScan = s.now()
	s.mu.Unlock()
	s.src.RequestScan()
}
