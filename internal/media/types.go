// Package media holds the shared capture and encode configuration types.
package media

// SourceKind identifies which kind of live source feeds the recording.
type SourceKind string

const (
	SourceCamera SourceKind = "camera"
	SourceScreen SourceKind = "screen"
	SourceTest   SourceKind = "test"
)

// StreamConfig describes the desired capture constraints for one capture
// session. It is immutable once the session starts; changing constraints
// requires a new session.
type StreamConfig struct {
	Width     int    `toml:"width" json:"width"`
	Height    int    `toml:"height" json:"height"`
	FrameRate int    `toml:"frame_rate" json:"frame_rate"`
	Audio     bool   `toml:"audio" json:"audio"`
	DeviceID  string `toml:"device_id" json:"device_id,omitempty"`
	Display   int    `toml:"display" json:"display,omitempty"`
}

// DefaultStreamConfig returns the capture constraints used when the caller
// does not override anything.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Width:     1280,
		Height:    720,
		FrameRate: 30,
		Audio:     true,
	}
}

// Blob is a finished output buffer with its declared size and MIME type.
type Blob struct {
	Data []byte
	Size int64
	MIME string
}
