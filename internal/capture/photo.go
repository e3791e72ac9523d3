package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrOutputUnavailable is returned when the required output is not attached.
var ErrOutputUnavailable = errors.New("output not attached")

// Output consumes frames from the graph's active input.
type Output interface {
	Kind() OutputKind
	// Attach is called inside a reconfiguration once the input is accepted.
	Attach(in Input)
	// Consume is called on the frame loop for every frame. It must not
	// block and must clone the Mat if it keeps it.
	Consume(frame Frame)
	// Detach is called when the graph tears down. Work in flight is failed.
	Detach()
}

// PhotoResult is delivered once a still capture completes.
type PhotoResult struct {
	Data      []byte
	Position  Position
	Timestamp time.Time
	Err       error
}

// PhotoOutput produces JPEG stills from the next frame after a request.
type PhotoOutput struct {
	mu       sync.Mutex
	attached bool
	pending  []func(PhotoResult)
}

func NewPhotoOutput() *PhotoOutput {
	return &PhotoOutput{}
}

func (p *PhotoOutput) Kind() OutputKind { return OutputPhoto }

func (p *PhotoOutput) Attach(in Input) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attached = true
}

// Capture requests a single still. cb runs on the frame loop.
func (p *PhotoOutput) Capture(cb func(PhotoResult)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.attached {
		return ErrOutputUnavailable
	}
	p.pending = append(p.pending, cb)
	return nil
}

// Pending returns the number of requests waiting for a frame.
func (p *PhotoOutput) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *PhotoOutput) Consume(frame Frame) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(pending) == 0 {
		return
	}

	result := PhotoResult{Position: frame.Position, Timestamp: frame.Timestamp}
	data, err := encodeJPEG(frame.Mat)
	if err != nil {
		result.Err = fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	} else {
		result.Data = data
	}

	for _, cb := range pending {
		cb(result)
	}
}

func (p *PhotoOutput) Detach() {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.attached = false
	p.mu.Unlock()

	for _, cb := range pending {
		cb(PhotoResult{Err: fmt.Errorf("%w: photo output detached", ErrCaptureFailed), Timestamp: time.Now()})
	}
}

// encodeJPEG returns a Go-owned copy of the JPEG encoding of mat.
func encodeJPEG(mat *gocv.Mat) ([]byte, error) {
	if mat == nil || mat.Empty() {
		return nil, errors.New("empty frame")
	}

	buf, err := gocv.IMEncode(".jpg", *mat)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	src := buf.GetBytes()
	data := make([]byte, len(src))
	copy(data, src)
	return data, nil
}
