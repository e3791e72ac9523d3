package app

import (
	"github.com/ayusman/facecam/internal/capture"
)

// event is anything the controller loop handles: user commands and
// hardware completions alike.
type event interface{}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdFlip
	cmdPhoto
	cmdToggleRecording
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdFlip:
		return "flip"
	case cmdPhoto:
		return "photo"
	case cmdToggleRecording:
		return "toggle-recording"
	default:
		return "unknown"
	}
}

type command struct {
	kind  commandKind
	reply chan error
}

// reconfigured reports the outcome of a graph reconfiguration.
type reconfigured struct {
	position   capture.Position
	generation uint64
	err        error
}

// runChanged reports the outcome of a start or stop.
type runChanged struct {
	running bool
	err     error
}

type photoFinished struct {
	result capture.PhotoResult
}

type recordingFinished struct {
	result capture.RecordingResult
}
