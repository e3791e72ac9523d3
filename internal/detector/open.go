package detector

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/facecam/internal/capture"
	"github.com/ayusman/facecam/internal/log"
)

// ErrUnavailable is returned by the detector Open falls back to when no
// model could be loaded.
var ErrUnavailable = errors.New("face detector unavailable")

// Open returns the best available detector: YuNet, then the Haar cascade.
// When neither loads, the returned detector fails every call with
// ErrUnavailable so frames are skipped rather than reported as empty.
func Open(cfg Config) Detector {
	yn, err := NewYuNet(cfg)
	if err == nil {
		log.Info("using yunet face detection", "model", cfg.ModelPath)
		return yn
	}
	log.Warn("yunet not available", "error", err)

	cc, err := NewCascade(cfg)
	if err == nil {
		log.Info("using haar cascade face detection", "cascade", cfg.CascadePath)
		return cc
	}
	log.Error("no face detector available, face tracking disabled", "error", err)

	return unavailable{cause: err}
}

type unavailable struct {
	cause error
}

func (u unavailable) Detect(*gocv.Mat, capture.Orientation) ([]Face, error) {
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (unavailable) Close() error { return nil }
