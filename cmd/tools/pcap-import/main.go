//go:build pcap
// +build pcap

// pcap-import replays 802.11 beacon frames from a monitor-mode capture into
// the survey database as one session at a fixed position. Useful for turning
// wardriving captures from other tools into heatmap data.
package main

import (
	"flag"
	"log"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/airtrace/internal/correlate"
	"github.com/banshee-data/airtrace/internal/db"
)

var (
	pcapFile = flag.String("pcap", "", "Path to the capture file (monitor mode, radiotap)")
	dbFile   = flag.String("db", "survey.db", "Path to the survey database")
	lat      = flag.Float64("lat", 0, "Latitude the capture was taken at")
	lon      = flag.Float64("lon", 0, "Longitude the capture was taken at")
)

func main() {
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("capture file is required")
	}
	coords := correlate.Coordinates{Lat: *lat, Lon: *lon}
	if !coords.Valid() {
		log.Fatal("a valid capture position is required (lat/lon must not both be zero)")
	}

	handle, err := pcap.OpenOffline(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open capture: %v", err)
	}
	defer handle.Close()

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	sessionID, err := store.AddSession(time.Now().Unix())
	if err != nil {
		log.Fatalf("failed to open session: %v", err)
	}
	locResult, err := store.FindOrCreateLocation(time.Now().Unix(), coords.String())
	if err != nil {
		log.Fatalf("failed to store capture location: %v", err)
	}

	var packets, beacons, recorded int
	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		packets++
		dev, ok := beaconDevice(packet)
		if !ok {
			continue
		}
		beacons++

		result, err := store.FindOrCreateDevice(dev)
		if err != nil {
			log.Printf("failed to store device %s: %v", dev.HardwareAddr, err)
			continue
		}
		sighting, err := store.RecordSighting(sessionID, result.ID, locResult.ID)
		if err != nil {
			log.Printf("failed to record sighting for %s: %v", dev.HardwareAddr, err)
			continue
		}
		if sighting.Outcome == db.UpsertInserted {
			recorded++
		}
	}

	if err := store.CloseSession(sessionID, time.Now().Unix()); err != nil {
		log.Printf("failed to close session: %v", err)
	}
	log.Printf("processed %d packets: %d beacons, %d new sightings in session %d",
		packets, beacons, recorded, sessionID)
}

// beaconDevice extracts a wifi device from a beacon frame, reading the SSID
// from the management information elements and the signal level from the
// radiotap header when present.
func beaconDevice(packet gopacket.Packet) (db.Device, bool) {
	dot11Layer := packet.Layer(layers.LayerTypeDot11)
	if dot11Layer == nil {
		return db.Device{}, false
	}
	dot11 := dot11Layer.(*layers.Dot11)
	if dot11.Type != layers.Dot11TypeMgmtBeacon {
		return db.Device{}, false
	}

	dev := db.Device{
		HardwareAddr: strings.ToUpper(dot11.Address3.String()),
		Kind:         db.KindWifi,
	}

	var capabilities []string
	for _, layer := range packet.Layers() {
		info, ok := layer.(*layers.Dot11InformationElement)
		if !ok {
			continue
		}
		switch info.ID {
		case layers.Dot11InformationElementIDSSID:
			dev.Name = string(info.Info)
		case layers.Dot11InformationElementIDRSNInfo:
			capabilities = append(capabilities, "[RSN]")
		case layers.Dot11InformationElementIDDSSet:
			if len(info.Info) == 1 {
				freq := channelToFrequency(int(info.Info[0]))
				dev.FrequencyMHz = &freq
			}
		}
	}
	dev.Characteristics = strings.Join(capabilities, "")

	if rt := packet.Layer(layers.LayerTypeRadioTap); rt != nil {
		radiotap := rt.(*layers.RadioTap)
		if radiotap.Present.DBMAntennaSignal() {
			signal := int(radiotap.DBMAntennaSignal)
			dev.SignalLevel = &signal
		}
	}
	return dev, true
}

// channelToFrequency maps a 2.4GHz or 5GHz channel number to MHz.
func channelToFrequency(channel int) int {
	switch {
	case channel == 14:
		return 2484
	case channel >= 1 && channel <= 13:
		return 2407 + channel*5
	case channel >= 36 && channel <= 177:
		return 5000 + channel*5
	default:
		return 0
	}
}
