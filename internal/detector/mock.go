package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	faces  []Face
	err    error
	gate   <-chan struct{}
	calls  int
	last   capture.Orientation
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces ...Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetGate makes Detect block until gate yields or is closed.
func (m *MockDetector) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat, o capture.Orientation) ([]Face, error) {
	m.mu.Lock()
	m.calls++
	m.last = o
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]Face(nil), m.faces...), nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastOrientation returns the orientation passed to the latest Detect call.
func (m *MockDetector) LastOrientation() capture.Orientation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// CenteredFace returns a face box centered in the frame.
func CenteredFace() Face {
	return Face{X: 0.4, Y: 0.4, W: 0.2, H: 0.2, Confidence: 0.95}
}
