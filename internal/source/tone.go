package source

import (
	"math"
	"sync/atomic"
)

// ToneTrack generates a sine tone as a live PCM feed, the audio analogue
// of the video test pattern. Disabling the track yields silence without
// stopping sample production.
type ToneTrack struct {
	sampleRate int
	channels   int
	freq       float64

	phase   uint64 // sample index, advanced by Read
	enabled atomic.Bool
	stopped atomic.Bool
}

// NewToneTrack creates an enabled tone track.
func NewToneTrack(sampleRate, channels int, freq float64) *ToneTrack {
	t := &ToneTrack{
		sampleRate: sampleRate,
		channels:   channels,
		freq:       freq,
	}
	t.enabled.Store(true)
	return t
}

// Read implements AudioTrack.
func (t *ToneTrack) Read(buf []int16) (int, error) {
	if t.stopped.Load() {
		return 0, nil
	}

	frames := len(buf) / t.channels
	enabled := t.enabled.Load()
	for i := 0; i < frames; i++ {
		var v int16
		if enabled {
			s := math.Sin(2 * math.Pi * t.freq * float64(t.phase) / float64(t.sampleRate))
			v = int16(s * 0.25 * math.MaxInt16)
		}
		for c := 0; c < t.channels; c++ {
			buf[i*t.channels+c] = v
		}
		t.phase++
	}
	return frames * t.channels, nil
}

// SampleRate implements AudioTrack.
func (t *ToneTrack) SampleRate() int { return t.sampleRate }

// Channels implements AudioTrack.
func (t *ToneTrack) Channels() int { return t.channels }

// SetEnabled implements AudioTrack.
func (t *ToneTrack) SetEnabled(enabled bool) { t.enabled.Store(enabled) }

// Enabled implements AudioTrack.
func (t *ToneTrack) Enabled() bool { return t.enabled.Load() }

// Clone implements AudioTrack. The clone has its own phase and enabled
// flag; muting it never affects the original.
func (t *ToneTrack) Clone() AudioTrack {
	return NewToneTrack(t.sampleRate, t.channels, t.freq)
}

// Stop implements AudioTrack.
func (t *ToneTrack) Stop() { t.stopped.Store(true) }
