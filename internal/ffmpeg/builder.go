package ffmpeg

import (
	"fmt"
	"strings"
)

// Base returns the ffmpeg invocation prefix shared by every command:
// no interactive prompts, levelled log output for the parser.
func Base() string {
	return "ffmpeg -hide_banner -nostdin -loglevel level+info -y"
}

// BuildTranscodeCommand builds a batch transcode command from structured
// parameters. Only set fields contribute arguments.
func BuildTranscodeCommand(p *Params) string {
	var cmd strings.Builder

	cmd.WriteString(Base())
	cmd.WriteString(" -i " + p.InputPath)

	// Scale and rate conversion.
	if p.Width > 0 && p.Height > 0 {
		// Pad to the exact target so mixed-aspect inputs letterbox the
		// same way the live compositor does.
		cmd.WriteString(fmt.Sprintf(
			" -vf scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			p.Width, p.Height, p.Width, p.Height))
	}
	if p.FPS > 0 {
		cmd.WriteString(fmt.Sprintf(" -r %d", p.FPS))
	}

	// Video encoder.
	encoder := p.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	cmd.WriteString(" -c:v " + encoder)
	if p.Bitrate != "" {
		cmd.WriteString(" -b:v " + p.Bitrate)
	}
	if p.CRF > 0 {
		cmd.WriteString(fmt.Sprintf(" -crf %d", p.CRF))
	}
	if p.Preset != "" {
		cmd.WriteString(" -preset " + p.Preset)
	}
	cmd.WriteString(" -pix_fmt yuv420p")
	if p.GOP > 0 {
		cmd.WriteString(fmt.Sprintf(" -g %d", p.GOP))
	}

	// Audio encoder.
	if p.NoAudio {
		cmd.WriteString(" -an")
	} else {
		codec := p.AudioCodec
		if codec == "" {
			codec = "aac"
		}
		cmd.WriteString(" -c:a " + codec)
		if p.AudioBitrate != "" {
			cmd.WriteString(" -b:a " + p.AudioBitrate)
		}
	}

	if p.FastStart {
		cmd.WriteString(" -movflags +faststart")
	}
	if p.ProgressToStdout {
		cmd.WriteString(" -progress pipe:1")
	}

	cmd.WriteString(" -f mp4 " + p.OutputPath)
	return cmd.String()
}

// BuildProbeCommand builds the ffprobe invocation used to read a finite
// input's duration, one plain number on stdout.
func BuildProbeCommand(inputPath string) string {
	return "ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 " + inputPath
}
