package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/banshee-data/airtrace/internal/api"
	"github.com/banshee-data/airtrace/internal/correlate"
	"github.com/banshee-data/airtrace/internal/db"
	"github.com/banshee-data/airtrace/internal/gps"
	"github.com/banshee-data/airtrace/internal/manuf"
	"github.com/banshee-data/airtrace/internal/pipeline"
	"github.com/banshee-data/airtrace/internal/scan"
)

var (
	//go:embed static/*
	staticFiles embed.FS

	devMode      = flag.Bool("dev", false, "Run in dev mode (fixture radios, fixed position)")
	listen       = flag.String("listen", ":8080", "Listen address")
	dbFile       = flag.String("db", "survey.db", "Path to the survey database")
	fixturesPath = flag.String("fixtures", "fixtures.json", "Path to the scripted radio fixtures")
	wifiInterval = flag.Duration("wifi-interval", 30*time.Second, "Minimum spacing between wifi scans")
	gpsPort      = flag.String("gps-port", "", "Serial port of the NMEA GPS receiver")
	gpsBaud      = flag.Int("gps-baud", 9600, "Baud rate of the GPS receiver")
	devLat       = flag.Float64("lat", 52.52, "Fixed latitude used in dev mode")
	devLon       = flag.Float64("lon", 13.405, "Fixed longitude used in dev mode")
	manufURL     = flag.String("manuf-url", "https://api.macvendors.com", "Manufacturer lookup endpoint (empty to disable)")
)

// fixtures is the on-disk script for the replay radios: wifi scan batches
// and bluetooth discovery cycles, cycled through in order.
type fixtures struct {
	WifiBatches     [][]scan.WifiDetection  `json:"wifi_batches"`
	BluetoothCycles [][]scan.BluetoothEvent `json:"bluetooth_cycles"`
}

func loadFixtures(path string) (*fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	fix, err := loadFixtures(*fixturesPath)
	if err != nil {
		log.Fatalf("failed to load radio fixtures: %v", err)
	}
	wifi := scan.NewMockWifiSource(fix.WifiBatches...)
	wifi.ScanLatency = 2 * time.Second
	bluetooth := scan.NewMockBluetoothSource(fix.BluetoothCycles...)

	var position gps.PositionSource
	if *devMode {
		position = &gps.Static{Coords: correlate.Coordinates{Lat: *devLat, Lon: *devLon}}
	} else {
		if *gpsPort == "" {
			log.Fatal("GPS port is required outside dev mode")
		}
		position = gps.NewSerialNMEA(*gpsPort, *gpsBaud)
	}

	var resolver manuf.Resolver
	if *manufURL != "" {
		resolver = manuf.NewHTTPResolver(*manufURL)
	}

	store, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	recorder, err := pipeline.NewRecorder(pipeline.Config{
		Store:        store,
		Wifi:         wifi,
		Bluetooth:    bluetooth,
		Position:     position,
		Resolver:     resolver,
		WifiInterval: *wifiInterval,
		OnStop: func(counts []db.LocationCount) {
			log.Printf("heatmap refreshed: %d locations", len(counts))
		},
	})
	if err != nil {
		log.Fatalf("Failed to build recorder: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// recording session runs for the lifetime of the process
	if err := recorder.Start(ctx); err != nil {
		log.Fatalf("Failed to start recording: %v", err)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := recorder.Stop(); err != nil {
			log.Printf("failed to stop recording cleanly: %v", err)
		}
		log.Print("recorder routine terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		store.AttachAdminRoutes(mux)

		// mount the API handlers
		apiMux := api.NewServer(store, recorder).ServeMux()
		mux.Handle("/api/", apiMux)

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting the
		// server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(staticFiles))
		}
		mux.Handle("/", staticHandler)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
