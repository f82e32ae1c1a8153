package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/airtrace/internal/db"
	"github.com/banshee-data/airtrace/internal/export"
	"github.com/banshee-data/airtrace/internal/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db  *db.DB
	rec *pipeline.Recorder
}

func NewServer(db *db.DB, rec *pipeline.Recorder) *Server {
	return &Server{
		db:  db,
		rec: rec,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/heatmap", s.showHeatmap)
	mux.HandleFunc("/api/stats", s.showSignalStats)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/devices", s.listDevices)
	mux.HandleFunc("/api/locations", s.listLocations)
	mux.HandleFunc("/api/sightings", s.listSightings)
	mux.HandleFunc("/api/export", s.exportDataset)
	mux.HandleFunc("/api/wipe", s.wipeDatabase)
	mux.HandleFunc("/api/scan_interval", s.changeScanInterval)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) showHeatmap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	counts, err := s.db.HeatmapData()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve heatmap: %v", err))
		return
	}
	if counts == nil {
		counts = []db.LocationCount{}
	}

	if err := json.NewEncoder(w).Encode(counts); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write heatmap")
		return
	}
}

func (s *Server) showSignalStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	stats, err := s.db.SignalStats()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve signal stats: %v", err))
		return
	}
	if stats == nil {
		stats = []db.LocationSignal{}
	}

	if err := json.NewEncoder(w).Encode(stats); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write signal stats")
		return
	}
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	s.listTable(w, r, "sessions", func() (any, error) {
		sessions, err := s.db.AllSessions()
		if sessions == nil {
			sessions = []db.Session{}
		}
		return sessions, err
	})
}

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	s.listTable(w, r, "devices", func() (any, error) {
		devices, err := s.db.AllDevices()
		if devices == nil {
			devices = []db.Device{}
		}
		return devices, err
	})
}

func (s *Server) listLocations(w http.ResponseWriter, r *http.Request) {
	s.listTable(w, r, "locations", func() (any, error) {
		locations, err := s.db.AllLocations()
		if locations == nil {
			locations = []db.Location{}
		}
		return locations, err
	})
}

func (s *Server) listSightings(w http.ResponseWriter, r *http.Request) {
	s.listTable(w, r, "sightings", func() (any, error) {
		sightings, err := s.db.AllSightings()
		if sightings == nil {
			sightings = []db.Sighting{}
		}
		return sightings, err
	})
}

func (s *Server) listTable(w http.ResponseWriter, r *http.Request, name string, query func() (any, error)) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	rows, err := query()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve %s: %v", name, err))
		return
	}

	if err := json.NewEncoder(w).Encode(rows); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write "+name)
		return
	}
}

func (s *Server) exportDataset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=survey-export.json")
	if err := export.WriteJSON(s.db, w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to export dataset: %v", err))
		return
	}
}

func (s *Server) wipeDatabase(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.db.WipeAll(); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to wipe database: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "wiped"})
}

func (s *Server) changeScanInterval(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	seconds, err := strconv.Atoi(r.FormValue("seconds"))
	if err != nil || seconds < 0 {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid 'seconds' parameter")
		return
	}
	if s.rec == nil {
		s.writeJSONError(w, http.StatusServiceUnavailable, "No recorder attached")
		return
	}

	if err := s.rec.ChangeWifiInterval(time.Duration(seconds) * time.Second); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to change scan interval: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]int{"seconds": seconds})
}
