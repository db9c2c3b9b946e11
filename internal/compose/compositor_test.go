package compose

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
)

func solidFrame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestCompositor_LetterboxBarsAreBlack(t *testing.T) {
	c := New(1280, 720)
	white := color.RGBA{255, 255, 255, 255}

	// 32:9 source: fit to width, bars above and below.
	c.Draw(solidFrame(1280, 360, white))

	frame := c.Frame()
	if got := frame.RGBAAt(640, 10); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Top bar should be black, got %v", got)
	}
	if got := frame.RGBAAt(640, 710); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Bottom bar should be black, got %v", got)
	}
	if got := frame.RGBAAt(640, 360); got != white {
		t.Errorf("Center should be white, got %v", got)
	}
}

func TestCompositor_ResolutionChangeRepaintsBars(t *testing.T) {
	c := New(1280, 720)
	white := color.RGBA{255, 255, 255, 255}
	red := color.RGBA{255, 0, 0, 255}

	// First a full-canvas frame, then a pillarboxed one: the side bars
	// must not keep pixels from the first frame.
	c.Draw(solidFrame(1280, 720, white))
	c.Draw(solidFrame(720, 720, red))

	frame := c.Frame()
	if got := frame.RGBAAt(10, 360); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Left bar should be repainted black, got %v", got)
	}
	if got := frame.RGBAAt(640, 360); got != red {
		t.Errorf("Center should be red, got %v", got)
	}
}

func TestCompositor_CanvasIsStableSize(t *testing.T) {
	c := New(640, 480)
	c.Draw(solidFrame(33, 77, color.RGBA{1, 2, 3, 255}))
	if b := c.Frame().Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("Canvas must stay 640x480, got %v", b)
	}
}
