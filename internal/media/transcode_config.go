package media

// TranscodeConfig describes the target output of an encode, live or batch.
// A config is fully immutable once a session starts; callers build one via
// MergeTranscodeConfig before handing it to the pipeline.
type TranscodeConfig struct {
	Width        int    `toml:"width" json:"width"`
	Height       int    `toml:"height" json:"height"`
	FrameRate    int    `toml:"frame_rate" json:"frame_rate"`
	VideoBitrate int    `toml:"video_bitrate" json:"video_bitrate"` // bps
	VideoCodec   string `toml:"video_codec" json:"video_codec"`
	AudioCodec   string `toml:"audio_codec" json:"audio_codec"`
	AudioBitrate int    `toml:"audio_bitrate" json:"audio_bitrate"` // bps

	// PacketCountHint is written into the container as optimization
	// metadata. It is not a hard limit on the number of packets.
	PacketCountHint int `toml:"packet_count_hint" json:"packet_count_hint"`
}

// TranscodeOverrides carries caller overrides for a TranscodeConfig.
// Nil fields keep the default.
type TranscodeOverrides struct {
	Width           *int
	Height          *int
	FrameRate       *int
	VideoBitrate    *int
	VideoCodec      *string
	AudioCodec      *string
	AudioBitrate    *int
	PacketCountHint *int
}

// DefaultTranscodeConfig returns the built-in output target.
func DefaultTranscodeConfig() TranscodeConfig {
	return TranscodeConfig{
		Width:           1280,
		Height:          720,
		FrameRate:       30,
		VideoBitrate:    2_500_000,
		VideoCodec:      "mjpeg",
		AudioCodec:      "pcm",
		AudioBitrate:    128_000,
		PacketCountHint: 4096,
	}
}

// MergeTranscodeConfig applies overrides on top of the defaults. Every
// default field not explicitly overridden is retained.
func MergeTranscodeConfig(o TranscodeOverrides) TranscodeConfig {
	cfg := DefaultTranscodeConfig()
	if o.Width != nil {
		cfg.Width = *o.Width
	}
	if o.Height != nil {
		cfg.Height = *o.Height
	}
	if o.FrameRate != nil {
		cfg.FrameRate = *o.FrameRate
	}
	if o.VideoBitrate != nil {
		cfg.VideoBitrate = *o.VideoBitrate
	}
	if o.VideoCodec != nil {
		cfg.VideoCodec = *o.VideoCodec
	}
	if o.AudioCodec != nil {
		cfg.AudioCodec = *o.AudioCodec
	}
	if o.AudioBitrate != nil {
		cfg.AudioBitrate = *o.AudioBitrate
	}
	if o.PacketCountHint != nil {
		cfg.PacketCountHint = *o.PacketCountHint
	}
	return cfg
}
