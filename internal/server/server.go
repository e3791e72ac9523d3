// Package server provides the HTTP command surface for facecam.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/facecam/internal/face"
	"github.com/ayusman/facecam/internal/server/api"
	"github.com/ayusman/facecam/internal/store"
)

// Camera is what the server needs from the capture controller.
type Camera interface {
	api.Camera
	Faces() (<-chan face.Observation, func())
	Preview() (<-chan []byte, func())
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Camera    Camera
}

// Server represents the HTTP server for the facecam application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	faces  *FaceHandler
	srv    *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		mediaHandler := api.NewMediaHandler(s.config.Store)
		s.mux.Handle("/api/media", mediaHandler)
		s.mux.Handle("/api/media/", mediaHandler)
	}

	if s.config.Camera != nil {
		cameraHandler := api.NewCameraHandler(s.config.Camera)
		s.mux.Handle("/api/state", cameraHandler)
		s.mux.Handle("/api/session/", cameraHandler)
		s.mux.Handle("/api/camera/", cameraHandler)
		s.mux.Handle("/api/photo", cameraHandler)
		s.mux.Handle("/api/recording/", cameraHandler)

		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera))

		s.faces = NewFaceHandler(s.config.Camera)
		s.mux.Handle("/api/face", s.faces)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Camera != nil {
		st := s.config.Camera.State()
		response["camera"] = map[string]interface{}{
			"position":   st.Position,
			"configured": st.Configured,
			"running":    st.Running,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.faces != nil {
		s.faces.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
