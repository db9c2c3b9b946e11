package source

import (
	"image"
	"image/color"
	"image/draw"
	"sync/atomic"
	"time"

	"github.com/smazurov/recordnode/internal/media"
)

// barColors are the classic 75% color bars.
var barColors = []color.RGBA{
	{191, 191, 191, 255}, // white
	{191, 191, 0, 255},   // yellow
	{0, 191, 191, 255},   // cyan
	{0, 191, 0, 255},     // green
	{191, 0, 191, 255},   // magenta
	{191, 0, 0, 255},     // red
	{0, 0, 191, 255},     // blue
}

// TestPattern is a synthetic source rendering scrolling color bars. It is
// always ready, which makes it the fixture for pipeline and recorder
// tests and the `--test` capture mode.
type TestPattern struct {
	width  int
	height int
	start  time.Time
	audio  AudioTrack
	closed atomic.Bool
}

// NewTestPattern creates a test source. withAudio attaches a 440 Hz tone
// track.
func NewTestPattern(width, height int, withAudio bool) *TestPattern {
	tp := &TestPattern{
		width:  width,
		height: height,
		start:  time.Now(),
	}
	if withAudio {
		tp.audio = NewToneTrack(48000, 2, 440)
	}
	return tp
}

// Kind implements Source.
func (tp *TestPattern) Kind() media.SourceKind { return media.SourceTest }

// Ready implements Source.
func (tp *TestPattern) Ready() bool { return !tp.closed.Load() }

// Dimensions implements Source.
func (tp *TestPattern) Dimensions() (int, int) {
	if tp.closed.Load() {
		return 0, 0
	}
	return tp.width, tp.height
}

// Frame renders the bars, shifted one bar width per second so recordings
// visibly move.
func (tp *TestPattern) Frame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, tp.width, tp.height))

	barW := tp.width / len(barColors)
	if barW < 1 {
		barW = 1
	}
	shift := int(time.Since(tp.start).Seconds()) * barW

	for x := 0; x < tp.width; x += barW {
		idx := ((x + shift) / barW) % len(barColors)
		r := image.Rect(x, 0, min(x+barW, tp.width), tp.height)
		draw.Draw(img, r, image.NewUniform(barColors[idx]), image.Point{}, draw.Src)
	}
	return img, nil
}

// AudioTrack implements Source.
func (tp *TestPattern) AudioTrack() AudioTrack { return tp.audio }

// Close implements Source.
func (tp *TestPattern) Close() error {
	tp.closed.Store(true)
	if tp.audio != nil {
		tp.audio.Stop()
	}
	return nil
}
