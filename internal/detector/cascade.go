package detector

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
)

// CascadeDetector finds faces with a Haar cascade. It reports a fixed
// confidence of 1 and orders faces by area, largest first.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
}

// NewCascade loads the cascade at cfg.CascadePath.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("load cascade %q", cfg.CascadePath)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

func (d *CascadeDetector) Detect(frame *gocv.Mat, o capture.Orientation) ([]Face, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, owned := capture.Orient(*frame, o)
	if owned {
		defer img.Close()
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	rects := d.classifier.DetectMultiScale(gray)
	sort.SliceStable(rects, func(i, j int) bool {
		return rects[i].Dx()*rects[i].Dy() > rects[j].Dx()*rects[j].Dy()
	})

	imgW := float64(img.Cols())
	imgH := float64(img.Rows())
	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, Normalize(
			float64(r.Min.X), float64(r.Min.Y),
			float64(r.Dx()), float64(r.Dy()),
			imgW, imgH, 1,
		))
	}
	return faces, nil
}

func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}
