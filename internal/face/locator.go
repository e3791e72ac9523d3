// Package face turns analysis frames into face position observations.
package face

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/detector"
	"github.com/ayusman/facecam/internal/log"
)

// ErrAnalysisSkipped is returned when a frame produced no observation.
var ErrAnalysisSkipped = errors.New("analysis skipped")

// Point is a face center in display space: [0,1] on both axes,
// origin at the top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Observation is the result of analyzing one frame. A nil Point means no
// face was found. Position is the camera the frame came from.
type Observation struct {
	Point     *Point           `json:"point"`
	Position  capture.Position `json:"position"`
	Seq       uint64           `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
}

// Found reports whether the observation carries a face.
func (o Observation) Found() bool {
	return o.Point != nil
}

// Locator analyzes at most one frame at a time on a single worker.
// Frames offered while the worker is busy are dropped.
type Locator struct {
	det     detector.Detector
	publish func(Observation)
	frames  chan capture.Frame

	offered  atomic.Uint64
	dropped  atomic.Uint64
	analyzed atomic.Uint64
	idle     atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLocator creates a Locator that publishes every observation it
// produces through publish.
func NewLocator(det detector.Detector, publish func(Observation)) *Locator {
	return &Locator{
		det:     det,
		publish: publish,
		frames:  make(chan capture.Frame),
	}
}

// Start launches the worker. It is a no-op if the worker is running.
func (l *Locator) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Close stops the worker and waits for the frame in flight, if any.
func (l *Locator) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
}

// Offer hands frame to the worker if it is idle. It never blocks.
// On success the Locator owns frame.Mat.
func (l *Locator) Offer(frame capture.Frame) bool {
	l.offered.Add(1)
	select {
	case l.frames <- frame:
		return true
	default:
		l.dropped.Add(1)
		return false
	}
}

// Idle reports whether the worker is waiting for a frame.
func (l *Locator) Idle() bool {
	return l.idle.Load()
}

func (l *Locator) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer l.idle.Store(false)

	for {
		l.idle.Store(true)
		select {
		case <-ctx.Done():
			return
		case frame := <-l.frames:
			l.idle.Store(false)
			obs, err := l.Analyze(frame)
			if frame.Mat != nil {
				frame.Mat.Close()
			}
			if err != nil {
				log.Debug("face analysis skipped", "position", frame.Position, "seq", frame.Seq, "error", err)
				continue
			}
			l.analyzed.Add(1)
			l.publish(obs)
		}
	}
}

// Analyze locates the first face in frame. Frames without pixel data and
// detector failures return ErrAnalysisSkipped.
func (l *Locator) Analyze(frame capture.Frame) (Observation, error) {
	if frame.Mat == nil || frame.Mat.Empty() {
		return Observation{}, fmt.Errorf("%w: no pixel data", ErrAnalysisSkipped)
	}

	faces, err := l.det.Detect(frame.Mat, frame.Orientation)
	if err != nil {
		return Observation{}, fmt.Errorf("%w: %v", ErrAnalysisSkipped, err)
	}

	obs := Observation{
		Position:  frame.Position,
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = time.Now()
	}
	if len(faces) > 0 {
		p := Center(faces[0])
		obs.Point = &p
	}
	return obs, nil
}

// Center converts a detector-space box to its display-space center.
func Center(f detector.Face) Point {
	return Point{
		X: clamp(f.X + f.W/2),
		Y: clamp(1 - (f.Y + f.H/2)),
	}
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Stats returns the number of frames offered, dropped and analyzed.
func (l *Locator) Stats() (offered, dropped, analyzed uint64) {
	return l.offered.Load(), l.dropped.Load(), l.analyzed.Load()
}

// Dropped returns the number of frames refused because the worker was busy.
func (l *Locator) Dropped() uint64 {
	return l.dropped.Load()
}
