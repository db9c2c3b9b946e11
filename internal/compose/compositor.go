package compose

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Compositor owns a fixed-resolution canvas and draws source frames onto
// it, centered and aspect-fit, over a black background. The canvas keeps
// its previous content across no-op ticks, so a temporarily not-ready
// source never produces a blank frame.
type Compositor struct {
	canvas *image.RGBA
	width  int
	height int
}

// New creates a compositor with a black canvas of the given size.
func New(width, height int) *Compositor {
	c := &Compositor{
		canvas: image.NewRGBA(image.Rect(0, 0, width, height)),
		width:  width,
		height: height,
	}
	c.clear()
	return c
}

func (c *Compositor) clear() {
	draw.Draw(c.canvas, c.canvas.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
}

// Draw composes one source frame onto the canvas. Padding bars are
// repainted on every draw so a source resolution change never leaves
// stale pixels behind.
func (c *Compositor) Draw(src image.Image) {
	b := src.Bounds()
	fit := FitRect(b.Dx(), b.Dy(), c.width, c.height)
	if fit.Empty() {
		return
	}

	c.clear()

	if fit.Dx() == b.Dx() && fit.Dy() == b.Dy() {
		draw.Draw(c.canvas, fit, src, b.Min, draw.Src)
		return
	}

	scaled := imaging.Resize(src, fit.Dx(), fit.Dy(), imaging.Lanczos)
	xdraw.Copy(c.canvas, fit.Min, scaled, scaled.Bounds(), xdraw.Src, nil)
}

// Frame returns the current canvas. The returned image is reused between
// draws; encoders that keep frames across ticks must copy it.
func (c *Compositor) Frame() *image.RGBA {
	return c.canvas
}

// Size returns the fixed canvas dimensions.
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}
