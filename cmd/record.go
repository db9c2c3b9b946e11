package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/recordnode/internal/config"
	"github.com/smazurov/recordnode/internal/devices"
	"github.com/smazurov/recordnode/internal/events"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/metrics"
	"github.com/smazurov/recordnode/internal/recorder"
	"github.com/smazurov/recordnode/internal/transcode"
	"github.com/smazurov/recordnode/internal/upload"
	"github.com/spf13/cobra"
)

// RecordOptions holds the record command configuration.
type RecordOptions struct {
	Config string

	Source   string `toml:"record.source" env:"SOURCE"`
	DeviceID string `toml:"record.device_id" env:"DEVICE_ID"`
	Display  int    `toml:"record.display" env:"DISPLAY"`

	Width     int  `toml:"record.width" env:"WIDTH"`
	Height    int  `toml:"record.height" env:"HEIGHT"`
	FrameRate int  `toml:"record.frame_rate" env:"FRAME_RATE"`
	NoAudio   bool `toml:"record.no_audio" env:"NO_AUDIO"`

	Output      string `toml:"record.output" env:"OUTPUT"`
	Duration    string `toml:"record.duration" env:"DURATION"`
	Preset      string `toml:"record.preset" env:"PRESET"`
	PresetsFile string `toml:"record.presets_file" env:"PRESETS_FILE"`

	MetricsAddr string `toml:"metrics.addr" env:"METRICS_ADDR"`

	Transcode   bool   `toml:"transcode.enabled" env:"TRANSCODE"`
	UploadURL   string `toml:"upload.url" env:"UPLOAD_URL"`
	UploadToken string `toml:"upload.token" env:"UPLOAD_TOKEN"`
}

// CreateRecordCmd creates the record command.
func CreateRecordCmd() *cobra.Command {
	opts := &RecordOptions{}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture and record a media source to MP4",
		Long: `Opens the requested source (camera, screen, or test pattern), records ` +
			`it to a seekable MP4, and writes the result to the output path. ` +
			`Recording stops on SIGINT/SIGTERM or after --duration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadConfig(opts, cmd); err != nil {
				return err
			}

			logging.Initialize(config.LoadLoggingConfig(opts.Config))
			logger := logging.GetLogger("record")

			return runRecord(cmd.Context(), opts, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "recordnode.toml", "Path to configuration file")
	cmd.Flags().StringVar(&opts.Source, "source", "camera", "Source kind: camera, screen, or test")
	cmd.Flags().StringVar(&opts.DeviceID, "device-id", "", "Camera device ID (default: first available)")
	cmd.Flags().IntVar(&opts.Display, "display", 0, "Display index for screen capture")
	cmd.Flags().IntVar(&opts.Width, "width", 1280, "Capture width")
	cmd.Flags().IntVar(&opts.Height, "height", 720, "Capture height")
	cmd.Flags().IntVar(&opts.FrameRate, "frame-rate", 30, "Capture frame rate")
	cmd.Flags().BoolVar(&opts.NoAudio, "no-audio", false, "Disable audio capture")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "recording.mp4", "Output file path")
	cmd.Flags().StringVar(&opts.Duration, "duration", "", "Stop automatically after this long (e.g. 30s)")
	cmd.Flags().StringVar(&opts.Preset, "preset", "", "Quality preset name")
	cmd.Flags().StringVar(&opts.PresetsFile, "presets-file", "", "Path to quality presets file")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().BoolVar(&opts.Transcode, "transcode", false, "Re-encode the recording with ffmpeg after stopping")
	cmd.Flags().StringVar(&opts.UploadURL, "upload-url", "", "Upload the finished recording to this URL")
	cmd.Flags().StringVar(&opts.UploadToken, "upload-token", "", "Bearer token for uploads")

	return cmd
}

func runRecord(ctx context.Context, opts *RecordOptions, logger logging.Logger) error {
	kind := media.SourceKind(opts.Source)
	switch kind {
	case media.SourceCamera, media.SourceScreen, media.SourceTest:
	default:
		return fmt.Errorf("unknown source kind %q", opts.Source)
	}

	streamCfg := media.StreamConfig{
		Width:     opts.Width,
		Height:    opts.Height,
		FrameRate: opts.FrameRate,
		Audio:     !opts.NoAudio,
		DeviceID:  opts.DeviceID,
		Display:   opts.Display,
	}

	transcodeCfg, err := resolvePreset(opts, streamCfg)
	if err != nil {
		return err
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr, logger)
	}

	bus := events.New()
	bus.Subscribe(func(ev events.RecordingTimeUpdateEvent) {
		logger.Info("recording", "elapsed", ev.Formatted, "buffered_bytes", ev.BufferedBytes)
	})
	bus.Subscribe(func(ev events.RecordingErrorEvent) {
		logger.Error("recording error", "code", ev.Code, "message", ev.Message)
	})

	manager := recorder.NewStreamManager(devices.NewProvider(), bus)
	defer manager.Destroy()

	if _, err := manager.StartStream(kind, streamCfg); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	if err := manager.StartRecording(transcodeCfg); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}

	waitForStop(ctx, opts.Duration, logger)

	blob, err := manager.StopRecording()
	if err != nil {
		return fmt.Errorf("stopping recording: %w", err)
	}
	logger.Info("recording stopped", "size", blob.Size, "mime", blob.MIME)

	if opts.Transcode {
		blob, err = transcodeBlob(ctx, blob, transcodeCfg, logger)
		if err != nil {
			return err
		}
	}

	if err := os.WriteFile(opts.Output, blob.Data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	logger.Info("wrote recording", "path", opts.Output, "size", blob.Size)

	if opts.UploadURL != "" {
		return uploadBlob(ctx, blob, opts, logger)
	}
	return nil
}

// waitForStop blocks until a stop signal, context cancellation, or the
// optional duration elapses.
func waitForStop(ctx context.Context, duration string, logger logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timeout <-chan time.Time
	if duration != "" {
		d, err := time.ParseDuration(duration)
		if err != nil {
			logger.Warn("invalid duration, recording until signalled", "duration", duration)
		} else {
			timeout = time.After(d)
		}
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal, stopping", "signal", sig.String())
	case <-timeout:
		logger.Info("duration elapsed, stopping")
	case <-ctx.Done():
	}
}

func resolvePreset(opts *RecordOptions, streamCfg media.StreamConfig) (media.TranscodeConfig, error) {
	cfg := media.DefaultTranscodeConfig()
	if opts.PresetsFile != "" {
		resolver := config.NewPresetResolver(opts.PresetsFile)
		resolved, err := resolver.Resolve(opts.Preset)
		if err != nil {
			return cfg, fmt.Errorf("resolving preset %q: %w", opts.Preset, err)
		}
		cfg = resolved
	}
	// Capture geometry wins over preset geometry so the recording matches
	// what the source actually produces.
	cfg.Width = streamCfg.Width
	cfg.Height = streamCfg.Height
	cfg.FrameRate = streamCfg.FrameRate
	return cfg, nil
}

func transcodeBlob(ctx context.Context, blob media.Blob, cfg media.TranscodeConfig, logger logging.Logger) (media.Blob, error) {
	// Batch output targets H.264/AAC unless the preset says otherwise.
	if cfg.VideoCodec == "" || cfg.VideoCodec == "mjpeg" {
		cfg.VideoCodec = "h264"
	}
	if cfg.AudioCodec == "" || cfg.AudioCodec == "pcm" {
		cfg.AudioCodec = "aac"
	}

	t := transcode.New()
	result, err := t.TranscodeBlob(ctx, blob, cfg, func(fraction float64) {
		logger.Info("transcoding", "progress", fmt.Sprintf("%.0f%%", fraction*100))
	})
	if err != nil {
		return blob, fmt.Errorf("transcoding: %w", err)
	}
	return result.Blob, nil
}

func uploadBlob(ctx context.Context, blob media.Blob, opts *RecordOptions, logger logging.Logger) error {
	uploader := upload.New()
	receipt, err := uploader.Upload(ctx, blob, upload.Metadata{
		Filename: opts.Output,
		Token:    opts.UploadToken,
		URL:      opts.UploadURL,
	})
	if err != nil {
		return fmt.Errorf("uploading: %w", err)
	}
	logger.Info("uploaded recording", "id", receipt.ID, "status", receipt.Status)
	return nil
}

func serveMetrics(addr string, logger logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("metrics server stopped", "error", err)
	}
}
