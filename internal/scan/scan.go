// Package scan defines the radio source contracts and the schedulers that
// drive them. The platform scanning machinery itself is external; a source
// only has to deliver raw detections and the "results available" /
// "discovery finished" events its radio produces.
package scan

// WifiDetection is one raw access point observation from a wifi scan.
type WifiDetection struct {
	SSID         string `json:"ssid"`
	BSSID        string `json:"bssid"`
	Capabilities string `json:"capabilities"`
	ChannelWidth int    `json:"channel_width"`
	FrequencyMHz int    `json:"frequency_mhz"`
	SignalLevel  int    `json:"signal_level"`
}

// WifiSource is a scan-on-demand radio. RequestScan is fire-and-forget; the
// platform signals completion on ResultsAvailable, after which Results
// returns the most recent batch.
type WifiSource interface {
	RequestScan()
	Results() []WifiDetection
	ResultsAvailable() <-chan struct{}
}

// BluetoothEventKind discriminates bluetooth discovery events.
type BluetoothEventKind int

const (
	// DeviceFound carries one discovered peripheral.
	DeviceFound BluetoothEventKind = iota
	// DiscoveryFinished signals that the platform inquiry cycle ended and
	// discovery must be restarted to keep scanning.
	DiscoveryFinished
)

// BluetoothEvent is one event from a continuous-discovery radio.
type BluetoothEvent struct {
	Kind         BluetoothEventKind
	Name         string
	HardwareAddr string
	DeviceClass  string
}

// BluetoothSource is a continuous-discovery radio. StartDiscovery kicks off
// one inquiry cycle; the source emits DeviceFound events while discovering
// and a DiscoveryFinished event when the cycle ends.
type BluetoothSource interface {
	StartDiscovery()
	Events() <-chan BluetoothEvent
}
