// Package transcode converts finished recordings to compressed formats
// with an ffmpeg subprocess. The live pipeline records MJPEG+PCM; this
// batch path is where H.264 and AAC targets are produced.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/recordnode/internal/ffmpeg"
	"github.com/smazurov/recordnode/internal/logging"
	"github.com/smazurov/recordnode/internal/media"
	"github.com/smazurov/recordnode/internal/process"
)

// ProgressFunc receives fractional progress in [0, 1].
type ProgressFunc func(fraction float64)

// Result is a finished transcode: the raw buffer and its blob wrapper.
type Result struct {
	Buffer []byte
	Blob   media.Blob
}

// runnerFunc executes one command, streaming output lines into handler,
// and returns the exit code. Swapped out in tests.
type runnerFunc func(ctx context.Context, id, command string, handler process.OutputHandler) int

// Transcoder runs batch conversions.
type Transcoder struct {
	workDir string
	logger  logging.Logger
	run     runnerFunc
}

// Option configures a Transcoder.
type Option func(*Transcoder)

// WithWorkDir sets the scratch directory for temp files.
func WithWorkDir(dir string) Option {
	return func(t *Transcoder) { t.workDir = dir }
}

func withRunner(run runnerFunc) Option {
	return func(t *Transcoder) { t.run = run }
}

// New creates a Transcoder.
func New(opts ...Option) *Transcoder {
	t := &Transcoder{
		workDir: os.TempDir(),
		logger:  logging.GetLogger("transcode"),
	}
	t.run = t.runProcess
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// runProcess is the default runner: a real subprocess with ffmpeg log
// parsing.
func (t *Transcoder) runProcess(ctx context.Context, id, command string, handler process.OutputHandler) int {
	p := process.NewProcessWithOutput(id, command, t.logger, handler)
	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
	return p.Run(ctx)
}

// TranscodeBlob converts an in-memory recording. The blob is staged to a
// temp file for ffmpeg.
func (t *Transcoder) TranscodeBlob(ctx context.Context, blob media.Blob, cfg media.TranscodeConfig, progress ProgressFunc) (*Result, error) {
	in := filepath.Join(t.workDir, "recordnode-in-"+uuid.NewString()+".mp4")
	if err := os.WriteFile(in, blob.Data, 0o600); err != nil {
		return nil, media.NewRecordingError(media.ErrCodeTranscode, "staging input failed", err)
	}
	defer os.Remove(in)

	return t.TranscodeFile(ctx, in, cfg, progress)
}

// TranscodeFile converts a recording on disk and returns the converted
// bytes. progress may be nil.
func (t *Transcoder) TranscodeFile(ctx context.Context, inputPath string, cfg media.TranscodeConfig, progress ProgressFunc) (*Result, error) {
	duration := t.probeDuration(ctx, inputPath)
	tracker := ffmpeg.NewProgressTracker(duration)

	out := filepath.Join(t.workDir, "recordnode-out-"+uuid.NewString()+".mp4")
	defer os.Remove(out)

	params := &ffmpeg.Params{
		InputPath:        inputPath,
		OutputPath:       out,
		Width:            cfg.Width,
		Height:           cfg.Height,
		FPS:              cfg.FrameRate,
		Encoder:          batchVideoEncoder(cfg.VideoCodec),
		Bitrate:          formatBitrate(cfg.VideoBitrate),
		AudioCodec:       batchAudioCodec(cfg.AudioCodec),
		AudioBitrate:     formatBitrate(cfg.AudioBitrate),
		GOP:              cfg.FrameRate * 5,
		FastStart:        true,
		ProgressToStdout: true,
	}
	command := ffmpeg.BuildTranscodeCommand(params)
	t.logger.Info("transcode started", "input", inputPath, "duration", duration)

	handler := &progressHandler{tracker: tracker, progress: progress}
	if code := t.run(ctx, "transcode-"+uuid.NewString(), command, handler); code != 0 {
		return nil, media.NewRecordingError(media.ErrCodeTranscode,
			fmt.Sprintf("ffmpeg exited with code %d", code), nil)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, media.NewRecordingError(media.ErrCodeTranscode, "reading output failed", err)
	}
	if progress != nil {
		progress(1)
	}

	t.logger.Info("transcode finished", "input", inputPath, "output_bytes", len(data))
	return &Result{
		Buffer: data,
		Blob:   media.Blob{Data: data, Size: int64(len(data)), MIME: "video/mp4"},
	}, nil
}

// probeDuration asks ffprobe for the input duration. Best effort: zero
// means progress fractions stay at 0 until completion.
func (t *Transcoder) probeDuration(ctx context.Context, inputPath string) time.Duration {
	collector := &outputCollector{}
	code := t.run(ctx, "probe-"+uuid.NewString(), ffmpeg.BuildProbeCommand(inputPath), collector)
	if code != 0 {
		t.logger.Warn("ffprobe failed, progress will be coarse", "input", inputPath, "exit_code", code)
		return 0
	}
	d, ok := ffmpeg.ParseProbeDuration(collector.stdout())
	if !ok {
		return 0
	}
	return d
}

// batchVideoEncoder maps a config codec id to the ffmpeg encoder.
func batchVideoEncoder(codecID string) string {
	switch codecID {
	case "mjpeg":
		return "mjpeg"
	default:
		return "libx264"
	}
}

// batchAudioCodec maps a config codec id to the ffmpeg encoder. A "pcm"
// target stays uncompressed.
func batchAudioCodec(codecID string) string {
	switch codecID {
	case "pcm":
		return "pcm_s16le"
	default:
		return "aac"
	}
}

// formatBitrate renders bits per second the ffmpeg way ("2500k").
func formatBitrate(bps int) string {
	if bps <= 0 {
		return ""
	}
	return fmt.Sprintf("%dk", bps/1000)
}

// progressHandler feeds ffmpeg -progress records into the tracker.
type progressHandler struct {
	tracker  *ffmpeg.ProgressTracker
	progress ProgressFunc
}

func (h *progressHandler) HandleLine(source, line string) {
	if source != "stdout" {
		return
	}
	if h.tracker.Update(line) && h.progress != nil {
		h.progress(h.tracker.Fraction())
	}
}

// outputCollector buffers stdout lines (for ffprobe).
type outputCollector struct {
	lines []string
}

func (c *outputCollector) HandleLine(source, line string) {
	if source == "stdout" {
		c.lines = append(c.lines, line)
	}
}

func (c *outputCollector) stdout() string {
	return strings.Join(c.lines, "\n")
}
