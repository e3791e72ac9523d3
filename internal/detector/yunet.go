package detector

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/log"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection.
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex
}

// NewYuNet creates a YuNet face detector from cfg.ModelPath.
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yunet model: %w", err)
	}

	w, h := cfg.InputWidth, cfg.InputHeight
	if w <= 0 || h <= 0 {
		w, h = 320, 320
	}

	// Input size is updated per frame in Detect.
	det := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(w, h),
		float32(cfg.MinConfidence),
		0.3,
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNetDetector{detector: det, config: cfg}, nil
}

// Detect runs YuNet on frame after turning it upright.
func (d *YuNetDetector) Detect(frame *gocv.Mat, o capture.Orientation) ([]Face, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, owned := capture.Orient(*frame, o)
	if owned {
		defer img.Close()
	}

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())
	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.detector.Detect(img, &out)

	// Rows: x, y, w, h, five landmark pairs, score.
	faces := make([]Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		score := float64(out.GetFloatAt(r, 14))
		if score < d.config.MinConfidence {
			continue
		}
		faces = append(faces, Normalize(
			float64(out.GetFloatAt(r, 0)),
			float64(out.GetFloatAt(r, 1)),
			float64(out.GetFloatAt(r, 2)),
			float64(out.GetFloatAt(r, 3)),
			imgW, imgH, score,
		))
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Confidence > faces[j].Confidence
	})

	if len(faces) > 0 {
		log.Debug("yunet found faces", "count", len(faces))
	}
	return faces, nil
}

// Close releases the detector resources.
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}
