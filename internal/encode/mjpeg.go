package encode

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/smazurov/recordnode/internal/media"
)

// mjpegEncoder is the shipped in-process video codec. Every sample is a
// complete JPEG, so the stream is intra-only and any frame is a valid
// seek target.
type mjpegEncoder struct {
	quality int
	buf     bytes.Buffer
}

// mjpegQuality derives a JPEG quality level from the configured bitrate
// budget. The mapping is coarse: the codec has no rate control, so the
// bitrate is treated as a quality hint rather than a hard target.
func mjpegQuality(bitrate, width, height, frameRate int) int {
	if bitrate <= 0 || width <= 0 || height <= 0 || frameRate <= 0 {
		return 85
	}

	// Bits available per pixel per frame.
	bpp := float64(bitrate) / float64(width*height*frameRate)
	switch {
	case bpp >= 0.50:
		return 95
	case bpp >= 0.25:
		return 90
	case bpp >= 0.12:
		return 85
	case bpp >= 0.06:
		return 75
	default:
		return 60
	}
}

func (e *mjpegEncoder) ID() string { return "mjpeg" }

func (e *mjpegEncoder) Encode(frame image.Image, _ bool) ([]byte, bool, error) {
	e.buf.Reset()
	if err := jpeg.Encode(&e.buf, frame, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, false, err
	}
	data := make([]byte, e.buf.Len())
	copy(data, e.buf.Bytes())
	return data, true, nil
}

func (e *mjpegEncoder) Close() error { return nil }

type mjpegFactory struct{}

// NewMJPEGFactory returns the factory for the in-process MJPEG codec.
func NewMJPEGFactory() VideoFactory {
	return &mjpegFactory{}
}

func (f *mjpegFactory) Handles(codecID string) bool {
	return codecID == "mjpeg" || codecID == ""
}

func (f *mjpegFactory) New(cfg media.TranscodeConfig) (VideoEncoder, error) {
	return &mjpegEncoder{
		quality: mjpegQuality(cfg.VideoBitrate, cfg.Width, cfg.Height, cfg.FrameRate),
	}, nil
}

func (f *mjpegFactory) Description() string {
	return "intra-only MJPEG (in-process)"
}
