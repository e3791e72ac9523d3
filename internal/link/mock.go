package link

import (
	"sync"
)

// Position is a position recorded by Mock.
type Position struct {
	X, Y float64
}

// Mock is an in-memory Link for tests.
type Mock struct {
	mu     sync.Mutex
	ready  bool
	err    error
	sent   []Position
	closed bool
}

// NewMock returns a Mock that reports ready as given.
func NewMock(ready bool) *Mock {
	return &Mock{ready: ready}
}

// SetReady changes the value IsReady returns.
func (m *Mock) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SetError makes SendPosition fail with err.
func (m *Mock) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *Mock) SendPosition(x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return ErrNotReady
	}
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, Position{X: x, Y: y})
	return nil
}

// Sent returns the positions written so far.
func (m *Mock) Sent() []Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Position(nil), m.sent...)
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.ready = false
	return nil
}
