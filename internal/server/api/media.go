package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/ayusman/facecam/internal/log"
	"github.com/ayusman/facecam/internal/store"
)

// MediaHandler serves the media library.
type MediaHandler struct {
	store *store.Store
}

// NewMediaHandler creates a new MediaHandler with the given store.
func NewMediaHandler(s *store.Store) *MediaHandler {
	return &MediaHandler{store: s}
}

type listMediaResponse struct {
	Media []*store.Media `json:"media"`
}

// ServeHTTP routes /api/media, /api/media/{id} and /api/media/{id}/file.
func (h *MediaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/media")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case rest == "" && r.Method == http.MethodGet:
		h.get(w, id)
	case rest == "" && r.Method == http.MethodDelete:
		h.delete(w, id)
	case rest == "file" && r.Method == http.MethodGet:
		h.file(w, r, id)
	case rest != "" && rest != "file":
		writeError(w, http.StatusNotFound, "Unknown endpoint")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/media, optionally filtered by ?kind=photo|video.
func (h *MediaHandler) list(w http.ResponseWriter, r *http.Request) {
	kind := store.MediaKind(r.URL.Query().Get("kind"))
	if kind != "" && kind != store.MediaPhoto && kind != store.MediaVideo {
		writeError(w, http.StatusBadRequest, "Invalid kind")
		return
	}

	media, err := h.store.Media().List(kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list media")
		return
	}
	if media == nil {
		media = []*store.Media{}
	}
	writeJSON(w, http.StatusOK, listMediaResponse{Media: media})
}

func (h *MediaHandler) get(w http.ResponseWriter, id string) {
	m, err := h.store.Media().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get media")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MediaHandler) file(w http.ResponseWriter, r *http.Request, id string) {
	m, err := h.store.Media().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get media")
		return
	}
	http.ServeFile(w, r, m.Path)
}

// delete removes the media row and its file.
func (h *MediaHandler) delete(w http.ResponseWriter, id string) {
	m, err := h.store.Media().GetByID(id)
	if err == nil {
		err = h.store.Media().Delete(id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete media")
		return
	}

	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove media file", "path", m.Path, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
