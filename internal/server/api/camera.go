package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/facecam/internal/app"
	"github.com/ayusman/facecam/internal/capture"
)

// Camera is the command surface of the capture controller.
type Camera interface {
	StartSession() error
	StopSession() error
	FlipCamera() error
	TakePhoto() error
	ToggleRecording() error
	State() app.State
	Stats() app.Stats
}

// CameraHandler serves /api/state and the camera commands.
type CameraHandler struct {
	camera Camera
}

// NewCameraHandler creates a new CameraHandler for c.
func NewCameraHandler(c Camera) *CameraHandler {
	return &CameraHandler{camera: c}
}

type stateResponse struct {
	State app.State `json:"state"`
	Stats app.Stats `json:"stats"`
}

// ServeHTTP routes:
//
//	GET  /api/state
//	POST /api/session/start, /api/session/stop
//	POST /api/camera/flip
//	POST /api/photo
//	POST /api/recording/toggle
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")

	if path == "/api/state" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, stateResponse{State: h.camera.State(), Stats: h.camera.Stats()})
		return
	}

	var cmd func() error
	switch path {
	case "/api/session/start":
		cmd = h.camera.StartSession
	case "/api/session/stop":
		cmd = h.camera.StopSession
	case "/api/camera/flip":
		cmd = h.camera.FlipCamera
	case "/api/photo":
		cmd = h.camera.TakePhoto
	case "/api/recording/toggle":
		cmd = h.camera.ToggleRecording
	default:
		writeError(w, http.StatusNotFound, "Unknown endpoint")
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := cmd(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, h.camera.State())
}

// statusFor maps command errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrBusyRecording):
		return http.StatusConflict
	case errors.Is(err, app.ErrNotRunning),
		errors.Is(err, capture.ErrOutputUnavailable),
		errors.Is(err, capture.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
