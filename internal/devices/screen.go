package devices

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/kbinani/screenshot"
	"github.com/pion/mediadevices"

	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/source"
)

// ScreenSource captures a display. Each Frame call grabs the display
// synchronously, so the pacing clock sets the effective capture rate.
type ScreenSource struct {
	display int
	bounds  image.Rectangle
	audio   source.AudioTrack
	closed  atomic.Bool
}

// OpenScreen acquires the display named by cfg.Display. When cfg.Audio is
// set a microphone track is attached, since displays carry no audio of
// their own.
func OpenScreen(cfg media.StreamConfig) (*ScreenSource, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays")
	}
	if cfg.Display < 0 || cfg.Display >= n {
		return nil, fmt.Errorf("display %d not found (%d active)", cfg.Display, n)
	}

	ss := &ScreenSource{
		display: cfg.Display,
		bounds:  screenshot.GetDisplayBounds(cfg.Display),
	}

	if cfg.Audio {
		constraints := mediadevices.MediaStreamConstraints{
			Audio: func(c *mediadevices.MediaTrackConstraints) {},
		}
		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			return nil, fmt.Errorf("microphone for screen capture: %w", err)
		}
		if tracks := stream.GetAudioTracks(); len(tracks) > 0 {
			if at, ok := tracks[0].(*mediadevices.AudioTrack); ok {
				ss.audio = newMicrophoneTrack(at)
			}
		}
	}
	return ss, nil
}

// Kind implements source.Source.
func (ss *ScreenSource) Kind() media.SourceKind { return media.SourceScreen }

// Ready implements source.Source.
func (ss *ScreenSource) Ready() bool { return !ss.closed.Load() }

// Dimensions implements source.Source.
func (ss *ScreenSource) Dimensions() (int, int) {
	if ss.closed.Load() {
		return 0, 0
	}
	return ss.bounds.Dx(), ss.bounds.Dy()
}

// Frame implements source.Source.
func (ss *ScreenSource) Frame() (image.Image, error) {
	if ss.closed.Load() {
		return nil, fmt.Errorf("screen source closed")
	}
	img, err := screenshot.CaptureRect(ss.bounds)
	if err != nil {
		return nil, fmt.Errorf("capture display %d: %w", ss.display, err)
	}
	return img, nil
}

// AudioTrack implements source.Source.
func (ss *ScreenSource) AudioTrack() source.AudioTrack { return ss.audio }

// Close implements source.Source.
func (ss *ScreenSource) Close() error {
	if ss.closed.Swap(true) {
		return nil
	}
	if ss.audio != nil {
		ss.audio.Stop()
	}
	return nil
}
