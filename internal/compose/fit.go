// Package compose scales variable-resolution source frames onto a
// fixed-size canvas, preserving aspect ratio with letterbox/pillarbox
// padding.
package compose

import "image"

// FitRect computes where a srcW x srcH frame lands on a dstW x dstH
// canvas when scaled to fit and centered. Wider-than-target sources fit
// to width (letterbox), taller ones fit to height (pillarbox).
//
// Pure function over explicit dimensions so it is testable without any
// drawing backend.
func FitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return image.Rectangle{}
	}

	aspectIn := float64(srcW) / float64(srcH)
	aspectOut := float64(dstW) / float64(dstH)

	var drawW, drawH int
	if aspectIn > aspectOut {
		drawW = dstW
		drawH = int(float64(dstW)/aspectIn + 0.5)
	} else {
		drawH = dstH
		drawW = int(float64(dstH)*aspectIn + 0.5)
	}
	if drawW < 1 {
		drawW = 1
	}
	if drawH < 1 {
		drawH = 1
	}

	x := (dstW - drawW) / 2
	y := (dstH - drawH) / 2
	return image.Rect(x, y, x+drawW, y+drawH)
}
