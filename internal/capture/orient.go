package capture

import "gocv.io/x/gocv"

// Orient returns frame in display space for orientation o. Detectors and
// the preview both look at frames through Orient so that coordinates
// reported from one line up with the other. When owned is true the caller
// must close the returned Mat.
func Orient(frame gocv.Mat, o Orientation) (m gocv.Mat, owned bool) {
	switch o {
	case OrientationMirrored:
		dst := gocv.NewMat()
		gocv.Flip(frame, &dst, 1)
		return dst, true
	case OrientationRight:
		dst := gocv.NewMat()
		gocv.Rotate(frame, &dst, gocv.Rotate90Clockwise)
		return dst, true
	case OrientationLeftMirrored:
		rotated := gocv.NewMat()
		defer rotated.Close()
		gocv.Rotate(frame, &rotated, gocv.Rotate90CounterClockwise)
		dst := gocv.NewMat()
		gocv.Flip(rotated, &dst, 1)
		return dst, true
	default:
		return frame, false
	}
}
