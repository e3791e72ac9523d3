package capture

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/log"
)

// previewHub fans JPEG frames out to display subscribers, latest wins.
type previewHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan []byte
	closed bool
}

func newPreviewHub() *previewHub {
	return &previewHub{subs: make(map[int]chan []byte)}
}

func (h *previewHub) subscribe() (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan []byte, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

func (h *previewHub) active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs) > 0
}

// publish encodes mat in display space, only when someone is watching.
func (h *previewHub) publish(mat *gocv.Mat, o Orientation) {
	if !h.active() {
		return
	}

	img, owned := Orient(*mat, o)
	if owned {
		defer img.Close()
	}
	data, err := encodeJPEG(&img)
	if err != nil {
		log.Debug("preview encode failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- data
	}
}

func (h *previewHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
	h.closed = true
}
