package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/facecam/internal/log"
)

// ErrNotConfigured is returned by Start when the graph has no input.
var ErrNotConfigured = errors.New("capture graph not configured")

// readBackoff is how long the frame loop waits after a failed read.
const readBackoff = 20 * time.Millisecond

// GraphState is the topology state of a Graph.
type GraphState int32

const (
	Unconfigured GraphState = iota
	Configuring
	Configured
)

// String returns the name of the state.
func (s GraphState) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Configuring:
		return "configuring"
	case Configured:
		return "configured"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Graph owns the active input and the fixed set of outputs fed from it.
//
// Topology changes happen only inside Reconfigure, which holds the graph
// mutex for the whole transaction. Start and Stop take the same mutex, so
// run-state changes never interleave with a reconfiguration. Both may block
// on hardware; callers on a latency-sensitive goroutine should dispatch them.
type Graph struct {
	resolver Resolver
	outputs  []Output
	preview  *previewHub

	mu       sync.Mutex
	input    Input
	attached []Output
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	state atomic.Int32
	live  atomic.Bool
	seq   atomic.Uint64
}

// NewGraph creates an unconfigured graph with a fixed set of outputs.
func NewGraph(resolver Resolver, outputs ...Output) *Graph {
	return &Graph{
		resolver: resolver,
		outputs:  outputs,
		preview:  newPreviewHub(),
	}
}

// Reconfigure replaces the input with the device for pos and reattaches
// every output the new input accepts. On failure the graph is left without
// an input and without outputs, and the error wraps ErrDeviceUnavailable.
func (g *Graph) Reconfigure(pos Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasRunning := g.running
	g.stopLoop()
	g.state.Store(int32(Configuring))

	g.teardown()

	in, err := g.resolver.Resolve(pos)
	if err != nil {
		g.running = false
		g.live.Store(false)
		g.state.Store(int32(Unconfigured))
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		log.Warn("capture graph reconfiguration aborted", "position", pos, "error", err)
		return fmt.Errorf("reconfigure %s: %w", pos, err)
	}

	g.input = in
	for _, out := range g.outputs {
		if !in.Supports(out.Kind()) {
			log.Info("output not accepted by input, skipping", "position", pos, "output", out.Kind())
			continue
		}
		out.Attach(in)
		g.attached = append(g.attached, out)
	}
	g.state.Store(int32(Configured))

	log.Info("capture graph configured", "position", pos, "outputs", len(g.attached))

	if wasRunning {
		g.startLoop()
	}
	return nil
}

// teardown detaches all outputs and closes the input. Caller holds mu.
func (g *Graph) teardown() {
	for _, out := range g.attached {
		out.Detach()
	}
	g.attached = nil

	if g.input != nil {
		if err := g.input.Close(); err != nil {
			log.Warn("error closing capture input", "position", g.input.Position(), "error", err)
		}
		g.input = nil
	}
}

// Start begins delivering frames. It is a no-op if already running.
func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running {
		return nil
	}
	if g.input == nil {
		return ErrNotConfigured
	}

	g.running = true
	g.startLoop()
	log.Info("capture graph started", "position", g.input.Position())
	return nil
}

// Stop halts frame delivery and waits for the frame loop to exit.
// It is a no-op if not running.
func (g *Graph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.running {
		return
	}

	g.stopLoop()
	g.running = false
	g.live.Store(false)
	log.Info("capture graph stopped")
}

// Close stops the graph and releases the input.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopLoop()
	g.running = false
	g.live.Store(false)
	g.teardown()
	g.state.Store(int32(Unconfigured))
	g.preview.close()
}

// startLoop launches the frame loop on the current topology. Caller holds mu.
func (g *Graph) startLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	g.live.Store(true)

	outs := append([]Output(nil), g.attached...)
	go g.loop(ctx, g.input, outs, g.done)
}

// stopLoop cancels the frame loop and waits for it. Caller holds mu.
func (g *Graph) stopLoop() {
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done
	g.cancel = nil
	g.done = nil
}

// loop reads frames from in and hands them to outs until ctx is cancelled.
// It works on a snapshot of the topology taken when it was started.
func (g *Graph) loop(ctx context.Context, in Input, outs []Output, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		mat, err := in.ReadFrame()
		if err != nil {
			log.Debug("frame read failed", "position", in.Position(), "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}

		frame := Frame{
			Mat:         mat,
			Position:    in.Position(),
			Orientation: in.Orientation(),
			Seq:         g.seq.Add(1),
			Timestamp:   time.Now(),
		}
		for _, out := range outs {
			out.Consume(frame)
		}
		g.preview.publish(mat, frame.Orientation)
		mat.Close()
	}
}

// State returns the current topology state.
func (g *Graph) State() GraphState {
	return GraphState(g.state.Load())
}

// Running reports whether the frame loop is active.
func (g *Graph) Running() bool {
	return g.live.Load()
}

// Position returns the position of the attached input.
func (g *Graph) Position() (Position, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.input == nil {
		return Front, false
	}
	return g.input.Position(), true
}

// Attached returns the kinds of the outputs currently attached.
func (g *Graph) Attached() []OutputKind {
	g.mu.Lock()
	defer g.mu.Unlock()

	kinds := make([]OutputKind, 0, len(g.attached))
	for _, out := range g.attached {
		kinds = append(kinds, out.Kind())
	}
	return kinds
}

// HasInput reports whether an input is attached.
func (g *Graph) HasInput() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.input != nil
}

// FramesRead returns the number of frames delivered since creation.
func (g *Graph) FramesRead() uint64 {
	return g.seq.Load()
}

// Preview subscribes to JPEG-encoded frames for display. Slow subscribers
// only see the latest frame. The returned function cancels the subscription.
func (g *Graph) Preview() (<-chan []byte, func()) {
	return g.preview.subscribe()
}
