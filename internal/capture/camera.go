// Package capture owns the camera device, its input and the outputs
// attached to it, and drives frames from the active input to those outputs.
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings
const (
	DefaultFPS    = 30
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrDeviceUnavailable is returned when no physical device exists for a position.
	ErrDeviceUnavailable = errors.New("device unavailable")
	// ErrCaptureFailed is reported through photo and recording completions.
	ErrCaptureFailed = errors.New("capture failed")
)

// Frame is a single video frame flowing through the graph.
// Mat is owned by whoever holds the Frame; outputs clone what they keep.
type Frame struct {
	Mat         *gocv.Mat
	Position    Position
	Orientation Orientation
	Seq         uint64
	Timestamp   time.Time
}

// OutputKind identifies one of the fixed outputs of a graph.
type OutputKind int

const (
	OutputPhoto OutputKind = iota
	OutputRecording
	OutputAnalysis
)

// String returns the name of the output kind.
func (k OutputKind) String() string {
	switch k {
	case OutputPhoto:
		return "photo"
	case OutputRecording:
		return "recording"
	case OutputAnalysis:
		return "analysis"
	default:
		return fmt.Sprintf("output(%d)", int(k))
	}
}

// Input is an opened capture device bound to a position.
type Input interface {
	Position() Position
	// Orientation maps the input's raw frames onto the display.
	Orientation() Orientation
	// ReadFrame reads a single frame. The caller is responsible for closing the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	// Supports reports whether an output of the given kind can be attached.
	Supports(kind OutputKind) bool
	FPS() int
	Close() error
}

// Resolver finds the physical device for a position and constructs its input.
// Failures wrap ErrDeviceUnavailable.
type Resolver interface {
	Resolve(pos Position) (Input, error)
}

// Settings holds the capture format requested from a device.
type Settings struct {
	Width       int
	Height      int
	FPS         int
	Orientation Orientation
}

// DefaultSettings returns 640x480 at 30 FPS.
func DefaultSettings() Settings {
	return Settings{Width: DefaultWidth, Height: DefaultHeight, FPS: DefaultFPS}
}

// DeviceResolver maps positions to GoCV device IDs.
type DeviceResolver struct {
	devices      map[Position]int
	orientations map[Position]Orientation
	settings     Settings
}

// NewDeviceResolver creates a resolver. A negative device ID marks the
// position as absent.
func NewDeviceResolver(front, back int, settings Settings) *DeviceResolver {
	devices := make(map[Position]int)
	if front >= 0 {
		devices[Front] = front
	}
	if back >= 0 {
		devices[Back] = back
	}
	return &DeviceResolver{
		devices: devices,
		orientations: map[Position]Orientation{
			Front: Front.Orientation(),
			Back:  Back.Orientation(),
		},
		settings: settings,
	}
}

// SetOrientation overrides the orientation of the device at pos. Use it for
// sensors mounted sideways.
func (r *DeviceResolver) SetOrientation(pos Position, o Orientation) {
	r.orientations[pos] = o
}

// Resolve opens the device configured for pos.
func (r *DeviceResolver) Resolve(pos Position) (Input, error) {
	id, ok := r.devices[pos]
	if !ok {
		return nil, fmt.Errorf("%w: no device configured for %s camera", ErrDeviceUnavailable, pos)
	}

	settings := r.settings
	settings.Orientation = r.orientations[pos]
	in, err := OpenCamera(id, pos, settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %s camera (device %d): %v", ErrDeviceUnavailable, pos, id, err)
	}
	return in, nil
}

// cameraInput manages video capture from a camera device using GoCV.
type cameraInput struct {
	deviceID    int
	position    Position
	orientation Orientation
	capture     *gocv.VideoCapture
	mu          sync.Mutex
	fps         int
}

// OpenCamera opens the camera with the given device ID and applies settings.
func OpenCamera(deviceID int, pos Position, settings Settings) (Input, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, err
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("device %d did not open", deviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(settings.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(settings.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(settings.FPS))

	fps := int(capture.Get(gocv.VideoCaptureFPS))
	if fps <= 0 {
		fps = settings.FPS
	}

	return &cameraInput{
		deviceID:    deviceID,
		position:    pos,
		orientation: settings.Orientation,
		capture:     capture,
		fps:         fps,
	}, nil
}

func (c *cameraInput) Position() Position {
	return c.position
}

func (c *cameraInput) Orientation() Orientation {
	return c.orientation
}

// Close closes the camera and releases resources.
func (c *cameraInput) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *cameraInput) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from camera")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// Supports accepts every output kind. Webcams expose a single stream that
// serves stills, recording and analysis alike.
func (c *cameraInput) Supports(kind OutputKind) bool {
	return true
}

func (c *cameraInput) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}
