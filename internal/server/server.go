// Package server exposes the cubby HTTP API: registration and login,
// batch uploads into share folders, namespace tree listing, authorized
// downloads, and a websocket feed of upload events.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ssd-technologies/cubby/internal/storage"
	"github.com/ssd-technologies/cubby/internal/vault"
)

// Options tunes server behavior; zero values fall back to defaults.
type Options struct {
	MaxUploadBytes int64
	SessionTTL     time.Duration
}

const (
	defaultMaxUploadBytes = 100 << 20 // 100 MB
	defaultSessionTTL     = 24 * time.Hour
)

// Server is the main HTTP server for the cubby API.
type Server struct {
	db        *storage.DB
	vault     *vault.Vault
	hub       *eventHub
	mux       *http.ServeMux
	authLimit *rateLimiter

	maxUploadBytes int64
	sessionTTL     time.Duration
}

// New creates a new Server with all routes registered.
func New(db *storage.DB, v *vault.Vault, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	s := &Server{
		db:             db,
		vault:          v,
		hub:            newEventHub(),
		mux:            http.NewServeMux(),
		authLimit:      newRateLimiter(20, time.Minute),
		maxUploadBytes: opts.MaxUploadBytes,
		sessionTTL:     opts.SessionTTL,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// routes registers all HTTP routes on the server mux.
func (s *Server) routes() {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	// Namespace
	s.mux.HandleFunc("GET /api/tree", s.handleTree)
	s.mux.HandleFunc("POST /api/upload", s.handleUpload)

	// Downloads
	s.mux.HandleFunc("GET /d/{owner}/{folder}/{name}", s.handleDownload)

	// Events
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "cubby",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
