// Package encode owns the encode pipeline: one video encoder track and
// one audio encoder track feeding the progressive MP4 muxer.
package encode

import (
	"fmt"
	"image"

	"github.com/smazurov/recordnode/internal/media"
)

// VideoEncoder turns composed frames into container samples.
type VideoEncoder interface {
	// ID returns the codec identifier ("mjpeg").
	ID() string

	// Encode encodes one frame. forceKeyframe requests a self-contained
	// sample; intra-only codecs return keyframe=true for every sample.
	Encode(frame image.Image, forceKeyframe bool) (data []byte, keyframe bool, err error)

	Close() error
}

// AudioEncoder turns interleaved PCM into container samples.
type AudioEncoder interface {
	ID() string

	// Encode encodes a block of interleaved samples.
	Encode(samples []int16) ([]byte, error)

	SampleRate() int
	Channels() int
	Close() error
}

// VideoFactory builds video encoders for the codec ids it handles.
type VideoFactory interface {
	Handles(codecID string) bool
	New(cfg media.TranscodeConfig) (VideoEncoder, error)
	Description() string
}

// AudioFactory builds audio encoders for the codec ids it handles.
type AudioFactory interface {
	Handles(codecID string) bool
	New(cfg media.TranscodeConfig, sampleRate, channels int) (AudioEncoder, error)
	Description() string
}

// CodecRegistry resolves codec ids to encoder factories. Factories are
// consulted in registration order, so a fallback registers last.
type CodecRegistry struct {
	video []VideoFactory
	audio []AudioFactory
}

// NewCodecRegistry returns an empty registry.
func NewCodecRegistry() *CodecRegistry {
	return &CodecRegistry{}
}

// RegisterVideo adds a video factory to the registry.
func (r *CodecRegistry) RegisterVideo(f VideoFactory) {
	r.video = append(r.video, f)
}

// RegisterAudio adds an audio factory to the registry.
func (r *CodecRegistry) RegisterAudio(f AudioFactory) {
	r.audio = append(r.audio, f)
}

// NewVideoEncoder builds an encoder for the config's video codec.
func (r *CodecRegistry) NewVideoEncoder(cfg media.TranscodeConfig) (VideoEncoder, error) {
	for _, f := range r.video {
		if f.Handles(cfg.VideoCodec) {
			return f.New(cfg)
		}
	}
	return nil, fmt.Errorf("no video encoder handles codec %q", cfg.VideoCodec)
}

// NewAudioEncoder builds an encoder for the config's audio codec.
func (r *CodecRegistry) NewAudioEncoder(cfg media.TranscodeConfig, sampleRate, channels int) (AudioEncoder, error) {
	for _, f := range r.audio {
		if f.Handles(cfg.AudioCodec) {
			return f.New(cfg, sampleRate, channels)
		}
	}
	return nil, fmt.Errorf("no audio encoder handles codec %q", cfg.AudioCodec)
}

// DefaultRegistry returns the registry with the in-process codecs. The
// pcm factory registers last as the catch-all so unknown audio ids still
// record.
func DefaultRegistry() *CodecRegistry {
	r := NewCodecRegistry()
	r.RegisterVideo(NewMJPEGFactory())
	r.RegisterAudio(NewPCMFactory())
	return r
}
