package capture

import (
	"sync/atomic"
	"testing"

	"gocv.io/x/gocv"
)

// gatedHandler accepts frames only while idle is set.
type gatedHandler struct {
	idle   atomic.Bool
	offers atomic.Int32
}

func (h *gatedHandler) Idle() bool { return h.idle.Load() }

func (h *gatedHandler) Offer(frame Frame) bool {
	h.offers.Add(1)
	frame.Mat.Close()
	return true
}

func TestAnalysisOutput_SkipsBusyHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	h := &gatedHandler{}
	out := NewAnalysisOutput(h)
	out.Attach(nil)

	out.Consume(Frame{Mat: &mat})
	if n := h.offers.Load(); n != 0 {
		t.Fatalf("busy handler got %d offers", n)
	}

	h.idle.Store(true)
	out.Consume(Frame{Mat: &mat})
	if n := h.offers.Load(); n != 1 {
		t.Fatalf("idle handler got %d offers, want 1", n)
	}

	offered, dropped := out.Stats()
	if offered != 2 || dropped != 1 {
		t.Errorf("Stats() = %d, %d; want 2, 1", offered, dropped)
	}
}

func TestAnalysisOutput_Detached(t *testing.T) {
	h := &gatedHandler{}
	h.idle.Store(true)
	out := NewAnalysisOutput(h)

	out.Consume(Frame{})
	if offered, _ := out.Stats(); offered != 0 {
		t.Errorf("detached output counted %d offers", offered)
	}
}
