package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/facecam/internal/face"
	"github.com/ayusman/facecam/internal/log"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// FaceSource supplies accepted face observations.
type FaceSource interface {
	Faces() (<-chan face.Observation, func())
}

// FaceHandler broadcasts face observations to WebSocket clients.
type FaceHandler struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	cancel  func()
	done    chan struct{}
}

// NewFaceHandler subscribes to source and starts broadcasting.
func NewFaceHandler(source FaceSource) *FaceHandler {
	faces, cancel := source.Faces()
	h := &FaceHandler{
		clients: make(map[*websocket.Conn]bool),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.broadcast(faces)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *FaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *FaceHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends each observation to every client until faces closes.
func (h *FaceHandler) broadcast(faces <-chan face.Observation) {
	defer close(h.done)

	for obs := range faces {
		h.mu.Lock()
		for conn := range h.clients {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(obs); err != nil {
				log.Debug("websocket write failed", "error", err)
				conn.Close()
				delete(h.clients, conn)
			}
		}
		h.mu.Unlock()
	}
}

// Close stops broadcasting and waits for the broadcaster to exit.
func (h *FaceHandler) Close() {
	h.cancel()
	<-h.done
}
