// Package geometry holds the pure dimension math behind resizing and
// cropping. Everything rounds half away from zero so computed sizes match
// the pixel sizes of generated files.
package geometry

import "math"

// ComputeDimensions returns the output size for fitting a srcW x srcH image
// into dstW x dstH. A zero target dimension means "derive from the aspect
// ratio". The result never exceeds the source.
func ComputeDimensions(srcW, srcH, dstW, dstH int, crop bool) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}

	if crop {
		outW := min(dstW, srcW)
		outH := srcH
		if dstH > 0 {
			outH = min(dstH, srcH)
		}
		return outW, outH
	}

	switch {
	case dstW <= 0 && dstH <= 0:
		return srcW, srcH
	case dstH <= 0:
		return byWidth(srcW, srcH, dstW)
	case dstW <= 0:
		return byHeight(srcW, srcH, dstH)
	}

	w, h := byWidth(srcW, srcH, dstW)
	if h <= min(dstH, srcH) {
		return w, h
	}
	return byHeight(srcW, srcH, dstH)
}

func byWidth(srcW, srcH, dstW int) (int, int) {
	w := min(dstW, srcW)
	return w, round(float64(w) * float64(srcH) / float64(srcW))
}

func byHeight(srcW, srcH, dstH int) (int, int) {
	h := min(dstH, srcH)
	return round(float64(h) * float64(srcW) / float64(srcH)), h
}

// Box is the source region to cut plus the size to scale it to.
type Box struct {
	CropW, CropH int
	OutW, OutH   int
}

// CropBox derives the largest source region with the target's aspect ratio:
// the source is scaled to cover the target, and the overflowing dimension
// is cut. ok is false when there is nothing to do (degenerate input, or the
// target is at least as large as the source on both axes).
func CropBox(srcW, srcH, dstW, dstH int) (Box, bool) {
	if srcW <= 0 || srcH <= 0 || (dstW <= 0 && dstH <= 0) {
		return Box{}, false
	}

	aspect := float64(srcW) / float64(srcH)
	newW := min(dstW, srcW)
	newH := min(dstH, srcH)
	if newW <= 0 {
		newW = round(float64(newH) * aspect)
	}
	if newH <= 0 {
		newH = round(float64(newW) / aspect)
	}

	if newW >= srcW && newH >= srcH {
		return Box{}, false
	}

	ratio := math.Max(float64(newW)/float64(srcW), float64(newH)/float64(srcH))
	return Box{
		CropW: round(float64(newW) / ratio),
		CropH: round(float64(newH) / ratio),
		OutW:  newW,
		OutH:  newH,
	}, true
}

// FocalOrigin centers a cropW x cropH box on the focal point (percentages
// of the source) and clamps it inside the source. It returns the top-left
// corner.
func FocalOrigin(srcW, srcH, cropW, cropH int, xPct, yPct float64) (int, int) {
	cx := xPct / 100 * float64(srcW)
	cy := yPct / 100 * float64(srcH)

	x := round(cx - float64(cropW)/2)
	y := round(cy - float64(cropH)/2)

	return clamp(x, 0, srcW-cropW), clamp(y, 0, srcH-cropH)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

func round(f float64) int {
	return int(math.Round(f))
}
