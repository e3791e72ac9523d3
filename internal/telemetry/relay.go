package telemetry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ayusman/facecam/internal/face"
	"github.com/ayusman/facecam/internal/log"
)

// Sender is the part of the peripheral link the relay needs.
type Sender interface {
	IsReady() bool
	SendPosition(x, y float64) error
}

// Relay forwards observations to a Sender through a Throttle.
// Delivery is best effort: failed sends are logged and dropped.
type Relay struct {
	throttle *Throttle
	link     Sender
	now      func() time.Time

	sent       atomic.Uint64
	suppressed atomic.Uint64
	failed     atomic.Uint64
}

// NewRelay creates a Relay.
func NewRelay(throttle *Throttle, link Sender) *Relay {
	return &Relay{throttle: throttle, link: link, now: time.Now}
}

// Run consumes observations until ctx is done or the channel closes.
func (r *Relay) Run(ctx context.Context, observations <-chan face.Observation) {
	for {
		select {
		case <-ctx.Done():
			return
		case obs, ok := <-observations:
			if !ok {
				return
			}
			r.Handle(obs)
		}
	}
}

// Handle applies the throttle to a single observation and reports whether
// it was sent.
func (r *Relay) Handle(obs face.Observation) bool {
	if !r.throttle.Offer(obs.Point, r.link.IsReady(), r.now()) {
		r.suppressed.Add(1)
		return false
	}

	if err := r.link.SendPosition(obs.Point.X, obs.Point.Y); err != nil {
		r.failed.Add(1)
		log.Debug("position send failed", "error", err)
		return false
	}
	r.sent.Add(1)
	return true
}

// Sent returns the number of positions written to the link.
func (r *Relay) Sent() uint64 { return r.sent.Load() }

// Suppressed returns the number of observations the throttle held back.
func (r *Relay) Suppressed() uint64 { return r.suppressed.Load() }

// Failed returns the number of sends the link rejected.
func (r *Relay) Failed() uint64 { return r.failed.Load() }
