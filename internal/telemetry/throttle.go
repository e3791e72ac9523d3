// Package telemetry rate-limits face positions onto the peripheral link.
package telemetry

import (
	"sync"
	"time"

	"github.com/ayusman/facecam/internal/face"
)

// DefaultMinInterval is the minimum spacing between two sends (about 20 Hz).
const DefaultMinInterval = 50 * time.Millisecond

// ShouldSend reports whether an observation may go out on the link.
// sent is false until the first send; last is only meaningful when it is
// true. The interval must be strictly exceeded.
func ShouldSend(obs *face.Point, last time.Time, sent bool, now time.Time, linkReady bool, min time.Duration) bool {
	if !linkReady || obs == nil {
		return false
	}
	return !sent || now.Sub(last) > min
}

// Throttle tracks the time of the last send.
type Throttle struct {
	MinInterval time.Duration

	mu   sync.Mutex
	last time.Time
	sent bool
}

// NewThrottle creates a Throttle; a non-positive interval selects
// DefaultMinInterval.
func NewThrottle(min time.Duration) *Throttle {
	if min <= 0 {
		min = DefaultMinInterval
	}
	return &Throttle{MinInterval: min}
}

// Offer applies ShouldSend and records now as the last send time when it
// allows the send.
func (t *Throttle) Offer(obs *face.Point, linkReady bool, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !ShouldSend(obs, t.last, t.sent, now, linkReady, t.MinInterval) {
		return false
	}
	t.last = now
	t.sent = true
	return true
}

// Last returns the time of the last allowed send. ok is false if nothing
// has been sent.
func (t *Throttle) Last() (last time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.sent
}

// Reset forgets the last send.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = time.Time{}
	t.sent = false
}
