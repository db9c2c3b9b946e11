package media

import "testing"

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestMergeTranscodeConfig_Defaults(t *testing.T) {
	cfg := MergeTranscodeConfig(TranscodeOverrides{})
	def := DefaultTranscodeConfig()

	if cfg != def {
		t.Errorf("Empty overrides should yield defaults, got %+v", cfg)
	}
	if cfg.AudioBitrate != 128_000 {
		t.Errorf("Expected default audio bitrate 128000, got %d", cfg.AudioBitrate)
	}
}

func TestMergeTranscodeConfig_PartialOverride(t *testing.T) {
	tests := []struct {
		name      string
		overrides TranscodeOverrides
		check     func(t *testing.T, cfg TranscodeConfig)
	}{
		{
			name:      "resolution only",
			overrides: TranscodeOverrides{Width: intPtr(1920), Height: intPtr(1080)},
			check: func(t *testing.T, cfg TranscodeConfig) {
				if cfg.Width != 1920 || cfg.Height != 1080 {
					t.Errorf("Expected 1920x1080, got %dx%d", cfg.Width, cfg.Height)
				}
				if cfg.FrameRate != DefaultTranscodeConfig().FrameRate {
					t.Errorf("FrameRate should keep default, got %d", cfg.FrameRate)
				}
				if cfg.AudioCodec != DefaultTranscodeConfig().AudioCodec {
					t.Errorf("AudioCodec should keep default, got %s", cfg.AudioCodec)
				}
			},
		},
		{
			name:      "codec and hint",
			overrides: TranscodeOverrides{AudioCodec: strPtr("aac"), PacketCountHint: intPtr(512)},
			check: func(t *testing.T, cfg TranscodeConfig) {
				if cfg.AudioCodec != "aac" {
					t.Errorf("Expected aac, got %s", cfg.AudioCodec)
				}
				if cfg.PacketCountHint != 512 {
					t.Errorf("Expected hint 512, got %d", cfg.PacketCountHint)
				}
				if cfg.VideoBitrate != DefaultTranscodeConfig().VideoBitrate {
					t.Errorf("VideoBitrate should keep default, got %d", cfg.VideoBitrate)
				}
			},
		},
		{
			name:      "zero is a valid override",
			overrides: TranscodeOverrides{PacketCountHint: intPtr(0)},
			check: func(t *testing.T, cfg TranscodeConfig) {
				if cfg.PacketCountHint != 0 {
					t.Errorf("Explicit zero should win, got %d", cfg.PacketCountHint)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, MergeTranscodeConfig(tt.overrides))
		})
	}
}
