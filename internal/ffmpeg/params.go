// Package ffmpeg builds and parses ffmpeg invocations for the batch
// transcode path.
package ffmpeg

// Params represents all parameters needed to generate a batch transcode
// command. Strongly typed fields instead of a map of strings.
type Params struct {
	// Input
	InputPath string

	// Output target
	OutputPath string
	Width      int
	Height     int
	FPS        int

	// Video encoder
	Encoder string // libx264, h264_vaapi, ...
	Bitrate string // 2.5M
	Preset  string // fast, medium, slow
	CRF     int    // 0 = not set
	GOP     int    // keyframe interval in frames, 0 = not set

	// Audio encoder
	AudioCodec   string // aac
	AudioBitrate string // 128k
	NoAudio      bool

	// Progress reporting: ffmpeg writes key=value progress records to
	// stdout when set.
	ProgressToStdout bool

	// FastStart relocates the moov to the front of the output for
	// immediate playback.
	FastStart bool
}
