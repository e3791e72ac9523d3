package detector

// Normalize converts a top-left origin pixel box to detector space.
func Normalize(x, y, w, h, imgW, imgH, score float64) Face {
	return Face{
		X:          x / imgW,
		Y:          1 - (y+h)/imgH,
		W:          w / imgW,
		H:          h / imgH,
		Confidence: score,
	}
}
