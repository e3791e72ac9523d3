package capture

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockInput plays back pre-recorded frames for testing
type MockInput struct {
	position    Position
	orientation Orientation
	frames      []*gocv.Mat
	index       int
	loop        bool
	interval    time.Duration
	unsupported map[OutputKind]bool
	closed      bool
	closeCount  int
	mu          sync.Mutex
}

func NewMockInput(pos Position, frames []*gocv.Mat, loop bool) *MockInput {
	return &MockInput{
		position:    pos,
		orientation: pos.Orientation(),
		frames:      frames,
		loop:        loop,
		interval:    5 * time.Millisecond,
		unsupported: make(map[OutputKind]bool),
	}
}

func (c *MockInput) Position() Position { return c.position }
func (c *MockInput) FPS() int           { return 30 }

func (c *MockInput) Orientation() Orientation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orientation
}

// SetOrientation overrides the orientation reported for this input.
func (c *MockInput) SetOrientation(o Orientation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orientation = o
}

// SetUnsupported makes Supports reject the given output kinds.
func (c *MockInput) SetUnsupported(kinds ...OutputKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range kinds {
		c.unsupported[k] = true
	}
}

func (c *MockInput) Supports(kind OutputKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.unsupported[kind]
}

func (c *MockInput) ReadFrame() (*gocv.Mat, error) {
	time.Sleep(c.interval)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrCameraNotOpen
	}

	if len(c.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if c.index >= len(c.frames) {
		if c.loop {
			c.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	frame := c.frames[c.index].Clone()
	c.index++

	return &frame, nil
}

func (c *MockInput) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCount++
	return nil
}

// Closed reports whether Close was called since the input was last resolved.
func (c *MockInput) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCount returns how many times Close was called.
func (c *MockInput) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCount
}

func (c *MockInput) reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = false
	c.index = 0
}

// MockResolver hands out MockInputs registered per position.
type MockResolver struct {
	mu     sync.Mutex
	inputs map[Position]*MockInput
	calls  []Position
}

func NewMockResolver() *MockResolver {
	return &MockResolver{inputs: make(map[Position]*MockInput)}
}

// SetInput registers the input returned for pos. A nil input removes it.
func (r *MockResolver) SetInput(pos Position, in *MockInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if in == nil {
		delete(r.inputs, pos)
		return
	}
	r.inputs[pos] = in
}

func (r *MockResolver) Resolve(pos Position) (Input, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, pos)

	in, ok := r.inputs[pos]
	if !ok {
		return nil, fmt.Errorf("%w: no mock input for %s camera", ErrDeviceUnavailable, pos)
	}
	in.reopen()
	return in, nil
}

// Calls returns the positions passed to Resolve, in order.
func (r *MockResolver) Calls() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Position(nil), r.calls...)
}
