// Package source defines the live source contract and the swappable
// adapter the encode pipeline reads frames through.
package source

import (
	"image"

	"github.com/smazurov/recordnode/internal/media"
)

// AudioTrack is a live PCM feed (16-bit interleaved samples).
type AudioTrack interface {
	// Read fills buf with interleaved samples and returns the count of
	// samples written. A disabled track keeps producing silence so the
	// consumer's timeline stays continuous.
	Read(buf []int16) (int, error)
	SampleRate() int
	Channels() int

	// SetEnabled toggles the track in place without stopping it.
	SetEnabled(enabled bool)
	Enabled() bool

	// Clone returns an independent handle on the same underlying feed;
	// the clone's enabled flag does not affect the original.
	Clone() AudioTrack

	// Stop releases the track. Only the owner of a handle stops it.
	Stop()
}

// Source is a live video source with optional audio.
type Source interface {
	Kind() media.SourceKind

	// Ready reports whether a frame is currently decodable. Sources
	// whose dimensions are not yet known report false rather than
	// producing a zero-sized frame.
	Ready() bool

	// Dimensions returns the source's native pixel size, (0, 0) while
	// not ready.
	Dimensions() (width, height int)

	// Frame returns the current frame. Only valid while Ready.
	Frame() (image.Image, error)

	// AudioTrack returns the source's audio feed, nil when it has none.
	AudioTrack() AudioTrack

	Close() error
}
