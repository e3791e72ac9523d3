package face

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/detector"
)

const epsilon = 1e-9

func newFrame(t *testing.T, pos capture.Position) capture.Frame {
	t.Helper()
	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	return capture.Frame{Mat: &mat, Position: pos, Timestamp: time.Now()}
}

func closeFrame(f capture.Frame) {
	if f.Mat != nil {
		f.Mat.Close()
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		name  string
		face  detector.Face
		wantX float64
		wantY float64
	}{
		{
			name:  "centered",
			face:  detector.Face{X: 0.4, Y: 0.4, W: 0.2, H: 0.2},
			wantX: 0.5, wantY: 0.5,
		},
		{
			name:  "bottom-left in detector space is bottom-left on display",
			face:  detector.Face{X: 0.0, Y: 0.0, W: 0.2, H: 0.2},
			wantX: 0.1, wantY: 0.9,
		},
		{
			name:  "top-right",
			face:  detector.Face{X: 0.8, Y: 0.8, W: 0.2, H: 0.2},
			wantX: 0.9, wantY: 0.1,
		},
		{
			name:  "clamped beyond the right edge",
			face:  detector.Face{X: 0.95, Y: 0.4, W: 0.3, H: 0.2},
			wantX: 1, wantY: 0.5,
		},
		{
			name:  "clamped beyond the bottom edge",
			face:  detector.Face{X: 0.4, Y: -0.4, W: 0.2, H: 0.2},
			wantX: 0.5, wantY: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Center(tt.face)
			if math.Abs(p.X-tt.wantX) > epsilon || math.Abs(p.Y-tt.wantY) > epsilon {
				t.Errorf("Center() = (%f, %f), want (%f, %f)", p.X, p.Y, tt.wantX, tt.wantY)
			}
		})
	}
}

func TestLocator_Analyze(t *testing.T) {
	t.Run("no pixel data is skipped", func(t *testing.T) {
		det := detector.NewMockDetector()
		l := NewLocator(det, func(Observation) {})

		empty := gocv.NewMat()
		defer empty.Close()

		for _, f := range []capture.Frame{{}, {Mat: &empty}} {
			if _, err := l.Analyze(f); !errors.Is(err, ErrAnalysisSkipped) {
				t.Errorf("Analyze() error = %v, want ErrAnalysisSkipped", err)
			}
		}
		if det.Calls() != 0 {
			t.Errorf("detector called %d times for empty frames", det.Calls())
		}
	})

	t.Run("detector failure is skipped", func(t *testing.T) {
		det := detector.NewMockDetector()
		det.SetError(errors.New("inference failed"))
		l := NewLocator(det, func(Observation) {})

		frame := newFrame(t, capture.Front)
		defer closeFrame(frame)

		if _, err := l.Analyze(frame); !errors.Is(err, ErrAnalysisSkipped) {
			t.Errorf("Analyze() error = %v, want ErrAnalysisSkipped", err)
		}
	})

	t.Run("no face yields empty observation", func(t *testing.T) {
		det := detector.NewMockDetector()
		l := NewLocator(det, func(Observation) {})

		frame := newFrame(t, capture.Back)
		defer closeFrame(frame)

		obs, err := l.Analyze(frame)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if obs.Found() {
			t.Errorf("Point = %+v, want nil", obs.Point)
		}
		if obs.Position != capture.Back {
			t.Errorf("Position = %v, want back", obs.Position)
		}
	})

	t.Run("first face wins", func(t *testing.T) {
		det := detector.NewMockDetector()
		det.SetFaces(
			detector.Face{X: 0.0, Y: 0.0, W: 0.2, H: 0.2, Confidence: 0.9},
			detector.CenteredFace(),
		)
		l := NewLocator(det, func(Observation) {})

		frame := newFrame(t, capture.Front)
		defer closeFrame(frame)

		obs, err := l.Analyze(frame)
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if !obs.Found() {
			t.Fatal("expected a face")
		}
		if math.Abs(obs.Point.X-0.1) > epsilon || math.Abs(obs.Point.Y-0.9) > epsilon {
			t.Errorf("Point = %+v, want (0.1, 0.9)", *obs.Point)
		}
	})

	t.Run("orientation follows frame", func(t *testing.T) {
		for _, o := range []capture.Orientation{capture.OrientationUp, capture.OrientationMirrored, capture.OrientationRight} {
			det := detector.NewMockDetector()
			l := NewLocator(det, func(Observation) {})

			frame := newFrame(t, capture.Front)
			frame.Orientation = o
			l.Analyze(frame)
			closeFrame(frame)

			if det.LastOrientation() != o {
				t.Errorf("orientation = %v, want %v", det.LastOrientation(), o)
			}
		}
	})
}

// boxDetector reports the bounding box of the lit pixels of a
// single-channel frame, seen through the frame's orientation.
type boxDetector struct{}

func (boxDetector) Detect(frame *gocv.Mat, o capture.Orientation) ([]detector.Face, error) {
	img, owned := capture.Orient(*frame, o)
	if owned {
		defer img.Close()
	}

	rect, ok := litBounds(img)
	if !ok {
		return nil, nil
	}
	return []detector.Face{detector.Normalize(
		float64(rect.Min.X), float64(rect.Min.Y),
		float64(rect.Dx()), float64(rect.Dy()),
		float64(img.Cols()), float64(img.Rows()), 1,
	)}, nil
}

func (boxDetector) Close() error { return nil }

func litBounds(img gocv.Mat) (image.Rectangle, bool) {
	rect := image.Rectangle{}
	found := false
	for y := 0; y < img.Rows(); y++ {
		for x := 0; x < img.Cols(); x++ {
			if img.GetUCharAt(y, x) < 128 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				rect, found = px, true
				continue
			}
			rect = rect.Union(px)
		}
	}
	return rect, found
}

func TestLocator_CenterMatchesDisplay(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	// Face box at pixels (40,40)-(120,120) of a 640x480 raw frame.
	raw := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC1)
	defer raw.Close()
	for y := 40; y < 120; y++ {
		for x := 40; x < 120; x++ {
			raw.SetUCharAt(y, x, 255)
		}
	}

	tests := []struct {
		name  string
		o     capture.Orientation
		wantX float64
		wantY float64
	}{
		{name: "back camera upright", o: capture.OrientationUp, wantX: 80.0 / 640, wantY: 80.0 / 480},
		{name: "front camera mirrored", o: capture.OrientationMirrored, wantX: 1 - 80.0/640, wantY: 80.0 / 480},
	}

	l := NewLocator(boxDetector{}, func(Observation) {})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, err := l.Analyze(capture.Frame{Mat: &raw, Orientation: tt.o})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if !obs.Found() {
				t.Fatal("expected a face")
			}
			if math.Abs(obs.Point.X-tt.wantX) > 1e-6 || math.Abs(obs.Point.Y-tt.wantY) > 1e-6 {
				t.Errorf("Point = (%.4f, %.4f), want (%.4f, %.4f)", obs.Point.X, obs.Point.Y, tt.wantX, tt.wantY)
			}

			// The preview shows the same frame through the same orientation;
			// the reported center must land inside the box drawn there.
			display, owned := capture.Orient(raw, tt.o)
			if owned {
				defer display.Close()
			}
			px := int(obs.Point.X * float64(display.Cols()))
			py := int(obs.Point.Y * float64(display.Rows()))
			if display.GetUCharAt(py, px) != 255 {
				t.Errorf("display pixel at reported center (%d,%d) is not part of the face", px, py)
			}
		})
	}
}

// offerUntilAccepted retries until the worker has picked up the frame.
func offerUntilAccepted(t *testing.T, l *Locator, frame capture.Frame) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.Offer(frame) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	closeFrame(frame)
	t.Fatal("worker never accepted a frame")
}

func TestLocator_PublishesObservations(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetFaces(detector.CenteredFace())

	published := make(chan Observation, 4)
	l := NewLocator(det, func(o Observation) { published <- o })
	l.Start(context.Background())
	defer l.Close()

	offerUntilAccepted(t, l, newFrame(t, capture.Back))

	select {
	case obs := <-published:
		if !obs.Found() {
			t.Fatal("expected a face")
		}
		if obs.Position != capture.Back {
			t.Errorf("Position = %v, want back", obs.Position)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no observation published")
	}
}

func TestLocator_DetectorErrorPublishesNothing(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetError(errors.New("inference failed"))

	published := make(chan Observation, 4)
	l := NewLocator(det, func(o Observation) { published <- o })
	l.Start(context.Background())
	defer l.Close()

	offerUntilAccepted(t, l, newFrame(t, capture.Front))

	select {
	case obs := <-published:
		t.Fatalf("unexpected observation %+v", obs)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocator_DropsWhileBusy(t *testing.T) {
	det := detector.NewMockDetector()
	gate := make(chan struct{})
	det.SetGate(gate)

	published := make(chan Observation, 16)
	l := NewLocator(det, func(o Observation) { published <- o })
	l.Start(context.Background())
	defer l.Close()

	offerUntilAccepted(t, l, newFrame(t, capture.Front))

	// The worker is blocked inside Detect: every offer is refused.
	const extra = 5
	for i := 0; i < extra; i++ {
		frame := newFrame(t, capture.Front)
		if l.Offer(frame) {
			t.Fatalf("offer %d accepted while worker busy", i)
		}
		closeFrame(frame)
	}
	if got := l.Dropped(); got != extra {
		t.Errorf("Dropped() = %d, want %d", got, extra)
	}
	busyBy := time.Now().Add(time.Second)
	for l.Idle() {
		if time.Now().After(busyBy) {
			t.Fatal("Idle() = true while the worker is in Detect")
		}
		time.Sleep(time.Millisecond)
	}

	close(gate)

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("no observation after releasing the detector")
	}

	// Exactly one analysis ran for the whole burst.
	select {
	case obs := <-published:
		t.Fatalf("unexpected second observation %+v", obs)
	case <-time.After(30 * time.Millisecond):
	}
	if det.Calls() != 1 {
		t.Errorf("detector calls = %d, want 1", det.Calls())
	}

	// The worker is idle again.
	offerUntilAccepted(t, l, newFrame(t, capture.Front))
}

func TestLocator_Idle(t *testing.T) {
	l := NewLocator(detector.NewMockDetector(), func(Observation) {})
	if l.Idle() {
		t.Error("Idle() = true before Start")
	}

	l.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for !l.Idle() {
		if time.Now().After(deadline) {
			t.Fatal("worker never became idle")
		}
		time.Sleep(time.Millisecond)
	}

	l.Close()
	if l.Idle() {
		t.Error("Idle() = true after Close")
	}
}

func TestLocator_OfferWithoutWorker(t *testing.T) {
	l := NewLocator(detector.NewMockDetector(), func(Observation) {})

	frame := newFrame(t, capture.Front)
	defer closeFrame(frame)

	if l.Offer(frame) {
		t.Error("Offer() accepted without a running worker")
	}
	offered, dropped, analyzed := l.Stats()
	if offered != 1 || dropped != 1 || analyzed != 0 {
		t.Errorf("Stats() = %d, %d, %d; want 1, 1, 0", offered, dropped, analyzed)
	}
}

func TestLocator_StartCloseIdempotent(t *testing.T) {
	l := NewLocator(detector.NewMockDetector(), func(Observation) {})

	l.Start(context.Background())
	l.Start(context.Background())
	l.Close()
	l.Close()

	frame := newFrame(t, capture.Front)
	defer closeFrame(frame)
	if l.Offer(frame) {
		t.Error("Offer() accepted after Close")
	}
}
