// Package app provides the capture controller: the command surface over the
// capture graph and face locator, and the single owner of published state.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/detector"
	"github.com/ayusman/facecam/internal/face"
	"github.com/ayusman/facecam/internal/log"
)

var (
	// ErrBusyRecording is returned by FlipCamera while a recording is active.
	ErrBusyRecording = errors.New("busy recording")
	// ErrNotRunning is returned by commands issued outside Run.
	ErrNotRunning = errors.New("controller not running")
)

// eventBuffer bounds the controller's inbox.
const eventBuffer = 64

// MediaSink persists finished captures. Failures stay inside the sink.
type MediaSink interface {
	SessionStarted(position string)
	SessionStopped()
	SavePhoto(data []byte, position string) error
	SaveRecording(path, position string) error
}

// Config wires a Controller to its collaborators.
type Config struct {
	Resolver        capture.Resolver
	Detector        detector.Detector
	Writers         capture.WriterFactory
	Sink            MediaSink // optional
	InitialPosition capture.Position
	RecordingDir    string // defaults to os.TempDir()
}

// State is an immutable snapshot of everything the controller publishes.
type State struct {
	Position      capture.Position `json:"position"`
	Configured    bool             `json:"configured"`
	Running       bool             `json:"running"`
	Recording     bool             `json:"recording"`
	RecordingPath string           `json:"recording_path,omitempty"`
	Face          face.Observation `json:"face"`
	LastError     string           `json:"last_error,omitempty"`
	Generation    uint64           `json:"generation"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Controller owns the capture graph and the face locator. All state
// changes happen on the goroutine running Run; readers use State or the
// subscription channels.
type Controller struct {
	cfg      Config
	graph    *capture.Graph
	photo    *capture.PhotoOutput
	recorder *capture.RecordingOutput
	analysis *capture.AnalysisOutput
	locator  *face.Locator

	events chan event
	faces  chan face.Observation
	queue  *sessionQueue

	state    atomic.Pointer[State]
	stateHub *hub[State]
	faceHub  *hub[face.Observation]
	cur      State
	stale    atomic.Uint64
	saves    sync.WaitGroup
	started  atomic.Bool
	// sessionOpen is only touched by session queue jobs and by shutdown
	// after the queue has stopped.
	sessionOpen bool
	done        chan struct{}
	closeOnce   sync.Once
}

// New builds a controller. Nothing touches hardware until Run.
func New(cfg Config) (*Controller, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("app: resolver is required")
	}
	if cfg.Detector == nil {
		return nil, errors.New("app: detector is required")
	}
	if cfg.Writers == nil {
		cfg.Writers = capture.VideoWriterFactory("mp4v")
	}
	if cfg.RecordingDir == "" {
		cfg.RecordingDir = os.TempDir()
	}

	c := &Controller{
		cfg:      cfg,
		photo:    capture.NewPhotoOutput(),
		recorder: capture.NewRecordingOutput(cfg.Writers),
		events:   make(chan event, eventBuffer),
		faces:    make(chan face.Observation, 1),
		queue:    newSessionQueue(),
		stateHub: newHub[State](),
		faceHub:  newHub[face.Observation](),
		done:     make(chan struct{}),
	}
	c.locator = face.NewLocator(cfg.Detector, c.observe)
	c.analysis = capture.NewAnalysisOutput(c.locator)
	c.graph = capture.NewGraph(cfg.Resolver, c.photo, c.recorder, c.analysis)

	c.cur = State{Position: cfg.InitialPosition, UpdatedAt: time.Now()}
	snapshot := c.cur
	c.state.Store(&snapshot)

	return c, nil
}

// Run configures the initial camera and processes commands and hardware
// events until ctx is done. It releases all capture resources on return.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("app: controller already started")
	}
	defer c.shutdown()

	c.locator.Start(ctx)
	go c.queue.run()

	c.reconfigure(c.cur.Position)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.handle(ev)
		case obs := <-c.faces:
			c.handleFace(obs)
		}
	}
}

func (c *Controller) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.queue.stop()
		c.graph.Close()
		c.closeSession()
		c.locator.Close()
		c.recorder.Wait()
		c.saves.Wait()
		if err := c.cfg.Detector.Close(); err != nil {
			log.Warn("error closing detector", "error", err)
		}
		c.stateHub.close()
		c.faceHub.close()
		log.Info("capture controller stopped")
	})
}

// StartSession starts frame delivery on the configured camera.
func (c *Controller) StartSession() error { return c.do(cmdStart) }

// StopSession stops frame delivery. An active recording is stopped first.
func (c *Controller) StopSession() error { return c.do(cmdStop) }

// FlipCamera switches to the other camera. It fails with ErrBusyRecording
// while recording and leaves the state untouched.
func (c *Controller) FlipCamera() error { return c.do(cmdFlip) }

// TakePhoto requests a still from the next frame.
func (c *Controller) TakePhoto() error { return c.do(cmdPhoto) }

// ToggleRecording starts or stops recording. The published Recording flag
// changes before ToggleRecording returns; the file is finalized later.
func (c *Controller) ToggleRecording() error { return c.do(cmdToggleRecording) }

// do hands a command to the loop and waits for its immediate outcome.
func (c *Controller) do(kind commandKind) error {
	if !c.started.Load() {
		return ErrNotRunning
	}

	cmd := command{kind: kind, reply: make(chan error, 1)}
	select {
	case c.events <- cmd:
	case <-c.done:
		return ErrNotRunning
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-c.done:
		return ErrNotRunning
	}
}

// post delivers a hardware event to the loop. It gives up once the
// controller has shut down.
func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// observe is the locator's publish function. Only the newest observation
// waits for the loop.
func (c *Controller) observe(obs face.Observation) {
	for {
		select {
		case c.faces <- obs:
			return
		default:
		}
		select {
		case <-c.faces:
		default:
		}
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case command:
		err := c.handleCommand(ev.kind)
		if err != nil {
			log.Warn("command rejected", "command", ev.kind, "error", err)
		}
		ev.reply <- err
	case reconfigured:
		c.handleReconfigured(ev)
	case runChanged:
		c.handleRunChanged(ev)
	case photoFinished:
		c.handlePhoto(ev.result)
	case recordingFinished:
		c.handleRecording(ev.result)
	default:
		log.Error("unknown controller event", "event", fmt.Sprintf("%T", ev))
	}
}

func (c *Controller) handleCommand(kind commandKind) error {
	switch kind {
	case cmdStart:
		c.queue.push(func() {
			err := c.graph.Start()
			if err == nil {
				c.openSession()
			}
			c.post(runChanged{running: err == nil, err: err})
		})
		return nil

	case cmdStop:
		if c.cur.Recording {
			c.stopRecording()
		}
		c.queue.push(func() {
			c.graph.Stop()
			c.closeSession()
			c.post(runChanged{running: false})
		})
		return nil

	case cmdFlip:
		if c.cur.Recording {
			return ErrBusyRecording
		}
		c.reconfigure(c.cur.Position.Other())
		return nil

	case cmdPhoto:
		err := c.photo.Capture(func(r capture.PhotoResult) {
			c.post(photoFinished{result: r})
		})
		if err != nil {
			return c.fail(fmt.Errorf("take photo: %w", err))
		}
		return nil

	case cmdToggleRecording:
		if c.cur.Recording {
			c.stopRecording()
			return nil
		}
		return c.startRecording()
	}
	return fmt.Errorf("unknown command %v", kind)
}

// reconfigure publishes the requested position and queues the graph
// transaction. Observations from the previous camera are dropped from here on.
func (c *Controller) reconfigure(pos capture.Position) {
	c.cur.Generation++
	c.cur.Position = pos
	c.cur.Configured = false
	c.cur.Face = face.Observation{}
	gen := c.cur.Generation
	c.publish()

	c.queue.push(func() {
		err := c.graph.Reconfigure(pos)
		if err != nil {
			// A failed reconfiguration leaves the graph stopped.
			c.closeSession()
		}
		c.post(reconfigured{position: pos, generation: gen, err: err})
	})
}

func (c *Controller) handleReconfigured(ev reconfigured) {
	if ev.generation != c.cur.Generation {
		return
	}
	if ev.err != nil {
		c.cur.Configured = false
		c.cur.Running = false
		c.fail(ev.err)
		return
	}

	c.cur.Configured = true
	c.cur.Running = c.graph.Running()
	c.cur.LastError = ""
	c.publish()
}

func (c *Controller) handleRunChanged(ev runChanged) {
	if ev.err != nil {
		c.cur.Running = false
		c.fail(fmt.Errorf("start session: %w", ev.err))
		return
	}
	c.cur.Running = ev.running
	c.publish()
}

// openSession tells the sink a session began, once per start/stop cycle.
func (c *Controller) openSession() {
	if c.sessionOpen || c.cfg.Sink == nil {
		return
	}
	pos, _ := c.graph.Position()
	c.cfg.Sink.SessionStarted(pos.String())
	c.sessionOpen = true
}

func (c *Controller) closeSession() {
	if !c.sessionOpen {
		return
	}
	c.cfg.Sink.SessionStopped()
	c.sessionOpen = false
}

func (c *Controller) startRecording() error {
	path := filepath.Join(c.cfg.RecordingDir, uuid.New().String()+".mp4")
	err := c.recorder.Start(path, func(r capture.RecordingResult) {
		c.post(recordingFinished{result: r})
	})
	if err != nil {
		return c.fail(fmt.Errorf("start recording: %w", err))
	}

	c.cur.Recording = true
	c.cur.RecordingPath = path
	c.publish()
	log.Info("recording started", "path", path)
	return nil
}

// stopRecording flips the flag immediately; the writer finishes on its own.
func (c *Controller) stopRecording() {
	if err := c.recorder.Stop(); err != nil {
		log.Warn("recorder stop", "error", err)
	}
	c.cur.Recording = false
	c.publish()
}

func (c *Controller) handlePhoto(r capture.PhotoResult) {
	if r.Err != nil {
		c.fail(r.Err)
		return
	}
	if c.cfg.Sink == nil {
		return
	}

	pos := r.Position.String()
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		if err := c.cfg.Sink.SavePhoto(r.Data, pos); err != nil {
			log.Warn("failed to save photo", "error", err)
		}
	}()
}

func (c *Controller) handleRecording(r capture.RecordingResult) {
	if r.Path == c.cur.RecordingPath && c.cur.Recording {
		c.cur.Recording = false
	}

	if r.Err != nil {
		log.Warn("recording failed", "path", r.Path, "error", r.Err)
		os.Remove(r.Path)
		c.fail(r.Err)
		return
	}
	c.publish()

	log.Info("recording finished", "path", r.Path, "frames", r.Frames)
	if c.cfg.Sink == nil {
		return
	}

	pos := c.cur.Position.String()
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		if err := c.cfg.Sink.SaveRecording(r.Path, pos); err != nil {
			log.Warn("failed to save recording", "path", r.Path, "error", err)
		}
	}()
}

// handleFace records the latest observation for the active camera.
func (c *Controller) handleFace(obs face.Observation) {
	if obs.Position != c.cur.Position || !c.cur.Configured {
		c.stale.Add(1)
		return
	}

	c.cur.Face = obs
	c.publish()
	c.faceHub.publish(obs)
}

// fail records err as the last error and publishes.
func (c *Controller) fail(err error) error {
	c.cur.LastError = err.Error()
	c.publish()
	return err
}

func (c *Controller) publish() {
	c.cur.UpdatedAt = time.Now()
	snapshot := c.cur
	c.state.Store(&snapshot)
	c.stateHub.publish(snapshot)
}

// State returns the latest published snapshot.
func (c *Controller) State() State {
	return *c.state.Load()
}

// Subscribe returns a channel holding the latest state. The returned
// function ends the subscription.
func (c *Controller) Subscribe() (<-chan State, func()) {
	return c.stateHub.subscribe()
}

// Faces returns a channel of observations accepted for the active camera.
func (c *Controller) Faces() (<-chan face.Observation, func()) {
	return c.faceHub.subscribe()
}

// Preview subscribes to JPEG frames from the active camera.
func (c *Controller) Preview() (<-chan []byte, func()) {
	return c.graph.Preview()
}

// Stats reports pipeline counters.
func (c *Controller) Stats() Stats {
	offered, dropped := c.analysis.Stats()
	_, _, analyzed := c.locator.Stats()
	return Stats{
		FramesRead:        c.graph.FramesRead(),
		FramesOffered:     offered,
		FramesDropped:     dropped,
		FramesAnalyzed:    analyzed,
		StaleObservations: c.stale.Load(),
	}
}

// Stats are pipeline counters since the controller was created.
type Stats struct {
	FramesRead        uint64 `json:"frames_read"`
	FramesOffered     uint64 `json:"frames_offered"`
	FramesDropped     uint64 `json:"frames_dropped"`
	FramesAnalyzed    uint64 `json:"frames_analyzed"`
	StaleObservations uint64 `json:"stale_observations"`
}
