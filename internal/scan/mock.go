package scan

import (
	"sync"
	"time"
)

// MockWifiSource implements WifiSource with scripted batches for tests and
// dev mode. Each call to RequestScan publishes the next scripted batch on
// the results channel after an optional latency.
type MockWifiSource struct {
	mu        sync.Mutex
	batches   [][]WifiDetection
	next      int
	latest    []WifiDetection
	available chan struct{}

	// ScanLatency delays the results event after a scan request.
	ScanLatency time.Duration

	// RequestTimes records when each scan request arrived.
	RequestTimes []time.Time
}

// NewMockWifiSource builds a source that cycles through the given batches.
func NewMockWifiSource(batches ...[]WifiDetection) *MockWifiSource {
	return &MockWifiSource{
		batches:   batches,
		available: make(chan struct{}, 1),
	}
}

func (m *MockWifiSource) RequestScan() {
	m.mu.Lock()
	m.RequestTimes = append(m.RequestTimes, time.Now())
	if len(m.batches) > 0 {
		m.latest = m.batches[m.next%len(m.batches)]
		m.next++
	}
	latency := m.ScanLatency
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	select {
	case m.available <- struct{}{}:
	default:
	}
}

func (m *MockWifiSource) Results() []WifiDetection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

func (m *MockWifiSource) ResultsAvailable() <-chan struct{} {
	return m.available
}

// Requests returns how many scan requests the source has received.
func (m *MockWifiSource) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RequestTimes)
}

// MockBluetoothSource implements BluetoothSource with scripted discovery
// cycles. Each StartDiscovery emits the next scripted cycle's DeviceFound
// events followed by DiscoveryFinished.
type MockBluetoothSource struct {
	mu     sync.Mutex
	cycles [][]BluetoothEvent
	next   int
	events chan BluetoothEvent

	// MaxCycles stops emitting DiscoveryFinished after this many cycles so
	// tests can bound the restart loop. Zero means unbounded.
	MaxCycles int

	started int
}

// NewMockBluetoothSource builds a source that cycles through the given
// scripted discovery cycles.
func NewMockBluetoothSource(cycles ...[]BluetoothEvent) *MockBluetoothSource {
	return &MockBluetoothSource{
		cycles: cycles,
		events: make(chan BluetoothEvent, 64),
	}
}

func (m *MockBluetoothSource) StartDiscovery() {
	m.mu.Lock()
	m.started++
	started := m.started
	var cycle []BluetoothEvent
	if len(m.cycles) > 0 {
		cycle = m.cycles[m.next%len(m.cycles)]
		m.next++
	}
	max := m.MaxCycles
	m.mu.Unlock()

	for _, ev := range cycle {
		m.events <- ev
	}
	if max == 0 || started < max {
		m.events <- BluetoothEvent{Kind: DiscoveryFinished}
	}
}

func (m *MockBluetoothSource) Events() <-chan BluetoothEvent {
	return m.events
}

// Discoveries returns how many discovery cycles have been started.
func (m *MockBluetoothSource) Discoveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}
