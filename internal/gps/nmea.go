package gps

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/airtrace/internal/correlate"
)

// SerialNMEA reads position fixes from a GPS receiver on a serial port
// speaking NMEA 0183. Only the GGA and RMC sentences are parsed; everything
// else on the wire is ignored.
type SerialNMEA struct {
	PortName string
	BaudRate int

	fix    fix
	port   serial.Port
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewSerialNMEA returns a source for the GPS receiver on portName. A zero
// baudRate defaults to 9600, the usual NMEA rate.
func NewSerialNMEA(portName string, baudRate int) *SerialNMEA {
	if baudRate == 0 {
		baudRate = 9600
	}
	return &SerialNMEA{PortName: portName, BaudRate: baudRate}
}

// Connect opens the port and starts the reader goroutine. The reader runs
// until Disconnect is called or ctx is cancelled.
func (s *SerialNMEA) Connect(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: s.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}

	port, err := serial.Open(s.PortName, mode)
	if err != nil {
		return fmt.Errorf("failed to open GPS port %s: %w", s.PortName, err)
	}
	s.port = port

	ctx, s.cancel = context.WithCancel(ctx)
	s.done.Add(1)
	go func() {
		defer s.done.Done()
		s.monitor(ctx)
	}()
	return nil
}

// Disconnect stops the reader and closes the port.
func (s *SerialNMEA) Disconnect() error {
	if s.cancel != nil {
		s.cancel()
	}
	var err error
	if s.port != nil {
		err = s.port.Close()
		s.port = nil
	}
	s.done.Wait()
	return err
}

// Coordinates returns the latest parsed fix, or the zero pair before the
// first valid sentence arrives.
func (s *SerialNMEA) Coordinates() correlate.Coordinates {
	return s.fix.get()
}

func (s *SerialNMEA) monitor(ctx context.Context) {
	scan := bufio.NewScanner(s.port)
	for scan.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		coords, ok, err := ParseSentence(scan.Text())
		if err != nil {
			log.Printf("skipping malformed NMEA sentence: %v", err)
			continue
		}
		if ok {
			s.fix.set(coords)
		}
	}
	if err := scan.Err(); err != nil && ctx.Err() == nil {
		log.Printf("GPS port read failed: %v", err)
	}
}

// ParseSentence extracts a position from one NMEA sentence. ok is false for
// sentence types that carry no position and for fixes the receiver marks
// invalid; err is reserved for sentences that claim a position but cannot be
// parsed.
func ParseSentence(line string) (coords correlate.Coordinates, ok bool, err error) {
	line = strings.TrimSpace(line)
	if i := strings.LastIndexByte(line, '*'); i >= 0 {
		line = line[:i] // checksum not verified; receivers emit it, we trust the UART
	}
	fields := strings.Split(line, ",")
	if len(fields) == 0 || len(fields[0]) < 6 || fields[0][0] != '$' {
		return correlate.Coordinates{}, false, nil
	}

	switch fields[0][3:] {
	case "GGA":
		// $__GGA,time,lat,N/S,lon,E/W,quality,...
		if len(fields) < 7 {
			return correlate.Coordinates{}, false, fmt.Errorf("short GGA sentence %q", line)
		}
		if fields[6] == "0" || fields[6] == "" {
			return correlate.Coordinates{}, false, nil
		}
		return parsePosition(fields[2], fields[3], fields[4], fields[5])
	case "RMC":
		// $__RMC,time,status,lat,N/S,lon,E/W,...
		if len(fields) < 7 {
			return correlate.Coordinates{}, false, fmt.Errorf("short RMC sentence %q", line)
		}
		if fields[2] != "A" {
			return correlate.Coordinates{}, false, nil
		}
		return parsePosition(fields[3], fields[4], fields[5], fields[6])
	}
	return correlate.Coordinates{}, false, nil
}

// parsePosition converts NMEA ddmm.mmmm / dddmm.mmmm fields with hemisphere
// indicators into signed decimal degrees.
func parsePosition(lat, ns, lon, ew string) (correlate.Coordinates, bool, error) {
	if lat == "" || lon == "" {
		return correlate.Coordinates{}, false, nil
	}
	latDeg, err := parseDegrees(lat, 2)
	if err != nil {
		return correlate.Coordinates{}, false, fmt.Errorf("bad latitude %q: %w", lat, err)
	}
	lonDeg, err := parseDegrees(lon, 3)
	if err != nil {
		return correlate.Coordinates{}, false, fmt.Errorf("bad longitude %q: %w", lon, err)
	}
	if ns == "S" {
		latDeg = -latDeg
	}
	if ew == "W" {
		lonDeg = -lonDeg
	}
	return correlate.Coordinates{Lat: latDeg, Lon: lonDeg}, true, nil
}

func parseDegrees(field string, degDigits int) (float64, error) {
	if len(field) <= degDigits {
		return 0, fmt.Errorf("field too short")
	}
	deg, err := strconv.ParseFloat(field[:degDigits], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(field[degDigits:], 64)
	if err != nil {
		return 0, err
	}
	return deg + min/60, nil
}
