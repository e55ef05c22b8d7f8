// Package simbackend simulates the verification backend so the client can be
// exercised end to end without the real agent pipeline: same routes, same
// field names, same progress behavior.
package simbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/mem"

	"paperwatch/pkg/logging"
	"paperwatch/pkg/models"
)

// maxUploadBytes bounds the multipart form kept in memory.
const maxUploadBytes = 32 << 20

// Server handles the simulated backend API.
type Server struct {
	store     *Store
	pipeline  *Pipeline
	logger    *logging.Logger
	exporter  *Exporter
	startTime time.Time
}

// NewServer creates a simulated backend server
func NewServer(store *Store, pipeline *Pipeline, logger *logging.Logger, exporter *Exporter) *Server {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Server{
		store:     store,
		pipeline:  pipeline,
		logger:    logger,
		exporter:  exporter,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/upload", s.HandleUpload).Methods("POST")
	r.HandleFunc("/api/status/{id}", s.HandleStatus).Methods("GET")
	r.HandleFunc("/api/results/{id}", s.HandleResults).Methods("GET")
	r.HandleFunc("/api/session/{id}", s.HandleDelete).Methods("DELETE")
	r.HandleFunc("/health", s.HandleHealth).Methods("GET")
	if s.exporter != nil {
		r.Handle("/metrics", s.exporter).Methods("GET")
	}
}

// HandleUpload accepts the multipart upload, creates a session and starts
// the simulated pipeline in the background. File contents are read but not
// stored; only the manifest matters to the simulation.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	paper, ok := firstFileName(r, "paper")
	if !ok {
		http.Error(w, "paper file is required", http.StatusBadRequest)
		return
	}

	manifest := &models.UploadManifest{
		Paper:   paper,
		Logs:    fileNames(r, "logs"),
		Scripts: fileNames(r, "scripts"),
	}
	if bib, ok := firstFileName(r, "bibtex"); ok {
		manifest.Bibtex = bib
	}

	sessionID := uuid.New().String()
	s.store.Put(&Session{
		ID:        sessionID,
		Status:    models.StatusUploading,
		Files:     manifest,
		CreatedAt: time.Now(),
	})

	s.logger.Info("session created", map[string]interface{}{
		"session_id": sessionID,
		"paper":      manifest.Paper,
		"logs":       len(manifest.Logs),
		"scripts":    len(manifest.Scripts),
	})

	go s.pipeline.Run(context.Background(), sessionID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.UploadResponse{
		SessionID: sessionID,
		Status:    "processing",
	})
}

// HandleStatus returns the current status snapshot for a session.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	snap := models.StatusSnapshot{
		Progress:     sess.Progress,
		CurrentAgent: sess.CurrentAgent,
		Status:       sess.Status,
		Error:        sess.Error,
		Files:        sess.Files,
	}
	if sess.Status == models.StatusCompleted {
		snap.Results = sess.Results
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleResults returns the full results payload once the run completed.
func (s *Server) HandleResults(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if sess.Status != models.StatusCompleted {
		http.Error(w, "analysis not completed yet", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sess.Results)
}

// HandleDelete removes a session.
func (s *Server) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil && err != ErrSessionNotFound {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("session deleted", map[string]interface{}{"session_id": id})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// HandleHealth reports liveness plus basic host information.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"cpu_threads":    runtime.NumCPU(),
		"os":             runtime.GOOS,
		"arch":           runtime.GOARCH,
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		health["memory_total_bytes"] = vmem.Total
		health["memory_available_bytes"] = vmem.Available
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func firstFileName(r *http.Request, field string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Filename == "" {
		return "", false
	}
	return files[0].Filename, true
}

func fileNames(r *http.Request, field string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	var names []string
	for _, fh := range r.MultipartForm.File[field] {
		if fh.Filename != "" {
			names = append(names, fh.Filename)
		}
	}
	return names
}
