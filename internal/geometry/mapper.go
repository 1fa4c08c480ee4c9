package geometry

import "math"

// MapToOriginal converts a click position on a scaled preview into pixel
// coordinates of the unscaled source image.
//
// The click is expected to lie within the displayed bounds
// (0 ≤ clickX ≤ dispWidth, 0 ≤ clickY ≤ dispHeight). Results are rounded
// and clamped into [0, origWidth] × [0, origHeight].
//
// ok is false when either displayed dimension is not positive, as happens
// for a click on an element with no layout yet. Callers must drop such
// clicks silently.
func MapToOriginal(origWidth, origHeight int, clickX, clickY, dispWidth, dispHeight float64) (origX, origY int, ok bool) {
	if dispWidth <= 0 || dispHeight <= 0 {
		return 0, 0, false
	}

	scaleX := float64(origWidth) / dispWidth
	scaleY := float64(origHeight) / dispHeight

	origX = clamp(int(math.Round(clickX*scaleX)), 0, origWidth)
	origY = clamp(int(math.Round(clickY*scaleY)), 0, origHeight)
	return origX, origY, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
