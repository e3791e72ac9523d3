package capture

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestPhotoOutput_NotAttached(t *testing.T) {
	p := NewPhotoOutput()
	if err := p.Capture(func(PhotoResult) {}); !errors.Is(err, ErrOutputUnavailable) {
		t.Errorf("Capture() error = %v, want ErrOutputUnavailable", err)
	}
}

func TestPhotoOutput_CapturesNextFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	p := NewPhotoOutput()
	p.Attach(NewMockInput(Back, nil, false))

	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer mat.Close()

	// Frames before a request are ignored.
	p.Consume(Frame{Mat: &mat, Position: Back, Timestamp: time.Now()})

	var results []PhotoResult
	for i := 0; i < 2; i++ {
		if err := p.Capture(func(r PhotoResult) { results = append(results, r) }); err != nil {
			t.Fatal(err)
		}
	}
	if p.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", p.Pending())
	}

	p.Consume(Frame{Mat: &mat, Position: Back, Timestamp: time.Now()})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("result error = %v", r.Err)
		}
		if len(r.Data) == 0 {
			t.Error("result has no JPEG data")
		}
		if r.Position != Back {
			t.Errorf("Position = %v, want back", r.Position)
		}
	}
	if p.Pending() != 0 {
		t.Errorf("Pending() = %d after consume, want 0", p.Pending())
	}
}

func TestPhotoOutput_EmptyFrameFails(t *testing.T) {
	p := NewPhotoOutput()
	p.Attach(NewMockInput(Front, nil, false))

	var got PhotoResult
	if err := p.Capture(func(r PhotoResult) { got = r }); err != nil {
		t.Fatal(err)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	p.Consume(Frame{Mat: &empty})

	if !errors.Is(got.Err, ErrCaptureFailed) {
		t.Errorf("result error = %v, want ErrCaptureFailed", got.Err)
	}
}
