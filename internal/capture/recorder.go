package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrAlreadyRecording is returned by Start while a recording is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNotRecording is returned by Stop when nothing is being recorded.
	ErrNotRecording = errors.New("not recording")
)

// FrameWriter appends frames to a video file.
type FrameWriter interface {
	Write(mat gocv.Mat) error
	Close() error
}

// WriterFactory opens a FrameWriter for a recording.
type WriterFactory func(path string, fps float64, width, height int) (FrameWriter, error)

// VideoWriterFactory returns a factory backed by gocv.VideoWriter.
func VideoWriterFactory(codec string) WriterFactory {
	return func(path string, fps float64, width, height int) (FrameWriter, error) {
		w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
		if err != nil {
			return nil, err
		}
		if !w.IsOpened() {
			w.Close()
			return nil, fmt.Errorf("video writer for %s did not open", path)
		}
		return w, nil
	}
}

// RecordingResult is delivered once a recording has been finalized.
type RecordingResult struct {
	Path   string
	Frames int
	Err    error
}

type recording struct {
	path   string
	cb     func(RecordingResult)
	writer FrameWriter
	frames int
	err    error
}

// RecordingOutput writes frames to a file between Start and Stop.
type RecordingOutput struct {
	newWriter WriterFactory

	mu       sync.Mutex
	attached bool
	fps      float64
	active   *recording
	wg       sync.WaitGroup
}

func NewRecordingOutput(factory WriterFactory) *RecordingOutput {
	return &RecordingOutput{newWriter: factory, fps: DefaultFPS}
}

func (r *RecordingOutput) Kind() OutputKind { return OutputRecording }

func (r *RecordingOutput) Attach(in Input) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attached = true
	if fps := in.FPS(); fps > 0 {
		r.fps = float64(fps)
	}
}

// Start begins recording to path. The file is opened on the first frame.
// cb receives the authoritative completion.
func (r *RecordingOutput) Start(path string, cb func(RecordingResult)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.attached {
		return ErrOutputUnavailable
	}
	if r.active != nil {
		return ErrAlreadyRecording
	}
	r.active = &recording{path: path, cb: cb}
	return nil
}

// Stop requests the end of the recording and returns without waiting for
// the file to be finalized.
func (r *RecordingOutput) Stop() error {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()

	if rec == nil {
		return ErrNotRecording
	}
	r.finish(rec, nil)
	return nil
}

// IsRecording reports whether a recording is in progress.
func (r *RecordingOutput) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Wait blocks until every finalization started so far has completed.
func (r *RecordingOutput) Wait() {
	r.wg.Wait()
}

func (r *RecordingOutput) Consume(frame Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.active
	if rec == nil || rec.err != nil || frame.Mat == nil || frame.Mat.Empty() {
		return
	}

	if rec.writer == nil {
		w, err := r.newWriter(rec.path, r.fps, frame.Mat.Cols(), frame.Mat.Rows())
		if err != nil {
			rec.err = fmt.Errorf("%w: open %s: %v", ErrCaptureFailed, rec.path, err)
			return
		}
		rec.writer = w
	}

	if err := rec.writer.Write(*frame.Mat); err != nil {
		rec.err = fmt.Errorf("%w: write frame: %v", ErrCaptureFailed, err)
		return
	}
	rec.frames++
}

func (r *RecordingOutput) Detach() {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.attached = false
	r.mu.Unlock()

	if rec != nil {
		r.finish(rec, fmt.Errorf("%w: recording aborted by reconfiguration", ErrCaptureFailed))
	}
}

// finish closes the writer off the caller's goroutine and reports the result.
func (r *RecordingOutput) finish(rec *recording, abort error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		result := RecordingResult{Path: rec.path, Frames: rec.frames}
		if rec.writer != nil {
			if err := rec.writer.Close(); err != nil && rec.err == nil {
				rec.err = fmt.Errorf("%w: close %s: %v", ErrCaptureFailed, rec.path, err)
			}
		}

		switch {
		case abort != nil:
			result.Err = abort
		case rec.err != nil:
			result.Err = rec.err
		case rec.frames == 0:
			result.Err = fmt.Errorf("%w: no frames recorded", ErrCaptureFailed)
		}

		if rec.cb != nil {
			rec.cb(result)
		}
	}()
}
