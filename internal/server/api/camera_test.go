package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ayusman/facecam/internal/app"
	"github.com/ayusman/facecam/internal/capture"
)

type fakeCamera struct {
	mu    sync.Mutex
	state app.State
	calls []string
	err   error
}

func (c *fakeCamera) call(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	return c.err
}

func (c *fakeCamera) StartSession() error    { return c.call("start") }
func (c *fakeCamera) StopSession() error     { return c.call("stop") }
func (c *fakeCamera) FlipCamera() error      { return c.call("flip") }
func (c *fakeCamera) TakePhoto() error       { return c.call("photo") }
func (c *fakeCamera) ToggleRecording() error { return c.call("toggle") }
func (c *fakeCamera) Stats() app.Stats       { return app.Stats{FramesRead: 42} }

func (c *fakeCamera) State() app.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func TestCameraHandler_Commands(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/session/start", "start"},
		{"/api/session/stop", "stop"},
		{"/api/camera/flip", "flip"},
		{"/api/photo", "photo"},
		{"/api/recording/toggle", "toggle"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			cam := &fakeCamera{state: app.State{Position: capture.Back}}
			handler := NewCameraHandler(cam)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusAccepted {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusAccepted)
			}
			if len(cam.calls) != 1 || cam.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", cam.calls, tt.want)
			}

			var state app.State
			if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if state.Position != capture.Back {
				t.Errorf("Position = %v, want back", state.Position)
			}
		})
	}
}

func TestCameraHandler_CommandErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "busy recording", err: app.ErrBusyRecording, want: http.StatusConflict},
		{name: "not running", err: app.ErrNotRunning, want: http.StatusServiceUnavailable},
		{name: "no output", err: fmt.Errorf("take photo: %w", capture.ErrOutputUnavailable), want: http.StatusServiceUnavailable},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := &fakeCamera{err: tt.err}
			handler := NewCameraHandler(cam)

			req := httptest.NewRequest(http.MethodPost, "/api/camera/flip", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}

			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != tt.err.Error() {
				t.Errorf("error = %q, want %q", resp.Error, tt.err.Error())
			}
		})
	}
}

func TestCameraHandler_State(t *testing.T) {
	cam := &fakeCamera{state: app.State{Position: capture.Front, Recording: true}}
	handler := NewCameraHandler(cam)

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp stateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.State.Recording || resp.State.Position != capture.Front {
		t.Errorf("state = %+v", resp.State)
	}
	if resp.Stats.FramesRead != 42 {
		t.Errorf("FramesRead = %d, want 42", resp.Stats.FramesRead)
	}
}

func TestCameraHandler_MethodNotAllowed(t *testing.T) {
	handler := NewCameraHandler(&fakeCamera{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/state"},
		{http.MethodGet, "/api/photo"},
		{http.MethodDelete, "/api/session/start"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestCameraHandler_UnknownEndpoint(t *testing.T) {
	cam := &fakeCamera{}
	handler := NewCameraHandler(cam)

	req := httptest.NewRequest(http.MethodPost, "/api/camera/zoom", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if len(cam.calls) != 0 {
		t.Errorf("unexpected calls %v", cam.calls)
	}
}
