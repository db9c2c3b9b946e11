package cmd

import (
	"fmt"
	"os"

	"github.com/smazurov/recordnode/internal/config"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/transcode"
	"github.com/spf13/cobra"
)

// TranscodeOptions holds the transcode command configuration.
type TranscodeOptions struct {
	Config string

	Output      string `toml:"transcode.output" env:"TRANSCODE_OUTPUT"`
	Preset      string `toml:"transcode.preset" env:"TRANSCODE_PRESET"`
	PresetsFile string `toml:"record.presets_file" env:"PRESETS_FILE"`

	Width        int    `toml:"transcode.width" env:"TRANSCODE_WIDTH"`
	Height       int    `toml:"transcode.height" env:"TRANSCODE_HEIGHT"`
	FrameRate    int    `toml:"transcode.frame_rate" env:"TRANSCODE_FRAME_RATE"`
	VideoBitrate int    `toml:"transcode.video_bitrate" env:"TRANSCODE_VIDEO_BITRATE"`
	VideoCodec   string `toml:"transcode.video_codec" env:"TRANSCODE_VIDEO_CODEC"`
	AudioCodec   string `toml:"transcode.audio_codec" env:"TRANSCODE_AUDIO_CODEC"`
}

// CreateTranscodeCmd creates the transcode command.
func CreateTranscodeCmd() *cobra.Command {
	opts := &TranscodeOptions{}

	cmd := &cobra.Command{
		Use:   "transcode [input-file]",
		Short: "Re-encode a recording with ffmpeg",
		Long: `Runs the input file through ffmpeg using the selected preset or the ` +
			`explicit codec settings and writes the result to the output path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}

			logging.Initialize(config.LoadLoggingConfig(opts.Config))
			logger := logging.GetLogger("transcode")

			cfg, err := transcodeConfigFromOptions(opts)
			if err != nil {
				return err
			}

			t := transcode.New()
			result, err := t.TranscodeFile(cmd.Context(), args[0], cfg, func(fraction float64) {
				logger.Info("transcoding", "progress", fmt.Sprintf("%.0f%%", fraction*100))
			})
			if err != nil {
				return fmt.Errorf("transcoding %s: %w", args[0], err)
			}

			if err := os.WriteFile(opts.Output, result.Buffer, 0o644); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			logger.Info("wrote transcoded file", "path", opts.Output, "size", result.Blob.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "recordnode.toml", "Path to configuration file")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "transcoded.mp4", "Output file path")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "Quality preset name")
	cmd.Flags().StringVar(&opts.PresetsFile, "presets-file", "", "Path to quality presets file")
	cmd.Flags().IntVar(&opts.Width, "width", 0, "Output width (default: preset)")
	cmd.Flags().IntVar(&opts.Height, "height", 0, "Output height (default: preset)")
	cmd.Flags().IntVar(&opts.FrameRate, "frame-rate", 0, "Output frame rate (default: preset)")
	cmd.Flags().IntVar(&opts.VideoBitrate, "video-bitrate", 0, "Video bitrate in bits/s (default: preset)")
	cmd.Flags().StringVar(&opts.VideoCodec, "video-codec", "h264", "Target video codec")
	cmd.Flags().StringVar(&opts.AudioCodec, "audio-codec", "aac", "Target audio codec")

	return cmd
}

func transcodeConfigFromOptions(opts *TranscodeOptions) (media.TranscodeConfig, error) {
	cfg := media.DefaultTranscodeConfig()
	if opts.PresetsFile != "" {
		resolver := config.NewPresetResolver(opts.PresetsFile)
		resolved, err := resolver.Resolve(opts.Preset)
		if err != nil {
			return cfg, fmt.Errorf("resolving preset %q: %w", opts.Preset, err)
		}
		cfg = resolved
	}

	if opts.Width > 0 {
		cfg.Width = opts.Width
	}
	if opts.Height > 0 {
		cfg.Height = opts.Height
	}
	if opts.FrameRate > 0 {
		cfg.FrameRate = opts.FrameRate
	}
	if opts.VideoBitrate > 0 {
		cfg.VideoBitrate = opts.VideoBitrate
	}
	if opts.VideoCodec != "" {
		cfg.VideoCodec = opts.VideoCodec
	}
	if opts.AudioCodec != "" {
		cfg.AudioCodec = opts.AudioCodec
	}
	return cfg, nil
}
