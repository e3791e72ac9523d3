package capture

import "sync/atomic"

// FrameHandler receives frames for analysis. Offer must not block: it
// returns false when the frame is refused. An accepted frame's Mat is owned
// by the handler.
type FrameHandler interface {
	Offer(frame Frame) bool
}

// Idler is implemented by handlers that can say up front whether Offer
// would accept a frame. AnalysisOutput skips the clone when they are busy.
type Idler interface {
	Idle() bool
}

// AnalysisOutput forwards cloned frames to a FrameHandler.
// Frames the handler refuses are dropped.
type AnalysisOutput struct {
	handler  FrameHandler
	attached atomic.Bool
	offered  atomic.Uint64
	dropped  atomic.Uint64
}

func NewAnalysisOutput(handler FrameHandler) *AnalysisOutput {
	return &AnalysisOutput{handler: handler}
}

func (a *AnalysisOutput) Kind() OutputKind { return OutputAnalysis }

func (a *AnalysisOutput) Attach(in Input) { a.attached.Store(true) }

func (a *AnalysisOutput) Detach() { a.attached.Store(false) }

func (a *AnalysisOutput) Consume(frame Frame) {
	if !a.attached.Load() || frame.Mat == nil {
		return
	}

	a.offered.Add(1)
	if idler, ok := a.handler.(Idler); ok && !idler.Idle() {
		a.dropped.Add(1)
		return
	}

	clone := frame.Mat.Clone()
	f := frame
	f.Mat = &clone

	if !a.handler.Offer(f) {
		clone.Close()
		a.dropped.Add(1)
	}
}

// Stats returns how many frames were offered and how many were dropped.
func (a *AnalysisOutput) Stats() (offered, dropped uint64) {
	return a.offered.Load(), a.dropped.Load()
}
