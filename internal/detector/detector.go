// Package detector finds faces in video frames.
package detector

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
)

// Face is a detected face bounding box in normalized detector space:
// coordinates are in [0,1] with the origin at the bottom-left of the
// oriented image, X/Y being the box's lower-left corner.
type Face struct {
	X, Y       float64
	W, H       float64
	Confidence float64
}

// Detector defines the interface for face detection implementations.
type Detector interface {
	// Detect analyzes a video frame captured with orientation o and returns
	// the faces found, best first. An empty slice means no face.
	Detect(frame *gocv.Mat, o capture.Orientation) ([]Face, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face detection.
type Config struct {
	// ModelPath is the YuNet ONNX model file.
	ModelPath string

	// CascadePath is the Haar cascade XML used when YuNet is unavailable.
	CascadePath string

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// InputWidth and InputHeight are the initial detector input size.
	InputWidth  int
	InputHeight int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/face_detection_yunet_2023mar.onnx",
		CascadePath:   "models/haarcascade_frontalface_default.xml",
		MinConfidence: 0.6,
		InputWidth:    320,
		InputHeight:   320,
	}
}
