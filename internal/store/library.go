package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/facecam/internal/log"
)

// Library files captured media under a directory and indexes them.
type Library struct {
	store *Store
	dir   string

	mu      sync.Mutex
	session string
}

// NewLibrary creates dir if needed and returns a Library backed by s.
func NewLibrary(s *Store, dir string) (*Library, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}
	return &Library{store: s, dir: dir}, nil
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// SessionStarted opens a session row; media saved until SessionStopped
// is linked to it.
func (l *Library) SessionStarted(position string) {
	sess := &Session{ID: uuid.New().String(), Position: position}
	if err := l.store.Sessions().Create(sess); err != nil {
		log.Warn("failed to record session start", "error", err)
		return
	}

	l.mu.Lock()
	l.session = sess.ID
	l.mu.Unlock()
}

// SessionStopped closes the current session row, if any.
func (l *Library) SessionStopped() {
	l.mu.Lock()
	id := l.session
	l.session = ""
	l.mu.Unlock()

	if id == "" {
		return
	}
	if err := l.store.Sessions().Finish(id, time.Now()); err != nil {
		log.Warn("failed to record session stop", "session", id, "error", err)
	}
}

func (l *Library) currentSession() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session
}

// SavePhoto writes a JPEG into the library.
func (l *Library) SavePhoto(data []byte, position string) error {
	if len(data) == 0 {
		return errors.New("empty photo")
	}

	id := uuid.New().String()
	path := filepath.Join(l.dir, id+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write photo: %w", err)
	}

	m := &Media{
		ID:        id,
		SessionID: l.currentSession(),
		Kind:      MediaPhoto,
		Path:      path,
		Position:  position,
		Size:      int64(len(data)),
	}
	if err := l.store.Media().Create(m); err != nil {
		os.Remove(path)
		return fmt.Errorf("index photo: %w", err)
	}

	log.Info("photo saved", "id", id, "bytes", m.Size)
	return nil
}

// SaveRecording moves a finished recording into the library.
func (l *Library) SaveRecording(src, position string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	id := uuid.New().String()
	ext := filepath.Ext(src)
	if ext == "" {
		ext = ".mp4"
	}
	dst := filepath.Join(l.dir, id+ext)
	if err := moveFile(src, dst); err != nil {
		return fmt.Errorf("move recording: %w", err)
	}

	m := &Media{
		ID:        id,
		SessionID: l.currentSession(),
		Kind:      MediaVideo,
		Path:      dst,
		Position:  position,
		Size:      info.Size(),
	}
	if err := l.store.Media().Create(m); err != nil {
		os.Remove(dst)
		return fmt.Errorf("index recording: %w", err)
	}

	log.Info("recording saved", "id", id, "bytes", m.Size)
	return nil
}

// moveFile renames src to dst, copying when they are on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
