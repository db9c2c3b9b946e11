package encode

import (
	"encoding/binary"

	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
)

// pcmEncoder passes 16-bit little-endian samples straight through. The
// container carries them as 'sowt'; bitrate settings do not apply.
type pcmEncoder struct {
	sampleRate int
	channels   int
}

func (e *pcmEncoder) ID() string { return "pcm" }

func (e *pcmEncoder) Encode(samples []int16) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out, nil
}

func (e *pcmEncoder) SampleRate() int { return e.sampleRate }
func (e *pcmEncoder) Channels() int   { return e.channels }
func (e *pcmEncoder) Close() error    { return nil }

type pcmFactory struct{}

// NewPCMFactory returns the factory for s16le passthrough audio. It is
// the catch-all: unknown audio codec ids record as PCM with a warning,
// and compressed targets are the batch transcode path's job.
func NewPCMFactory() AudioFactory {
	return &pcmFactory{}
}

func (f *pcmFactory) Handles(codecID string) bool { return true }

func (f *pcmFactory) New(cfg media.TranscodeConfig, sampleRate, channels int) (AudioEncoder, error) {
	if cfg.AudioCodec != "pcm" && cfg.AudioCodec != "" {
		logging.GetLogger("encode").Warn("audio codec not available in-process, recording PCM",
			"requested", cfg.AudioCodec)
	}
	return &pcmEncoder{sampleRate: sampleRate, channels: channels}, nil
}

func (f *pcmFactory) Description() string {
	return "s16le PCM passthrough (catch-all)"
}
