package ffmpeg

import (
	"strconv"
	"strings"
)

// CommandBuilder assembles an FFmpeg argv with a fluent API. The result is
// always a deterministic argument vector; nothing ever passes through a
// shell.
type CommandBuilder struct {
	binary     string
	globalArgs []string
	inputArgs  []string
	input      string
	filterArgs []string
	outputArgs []string
	output     string
	logLevel   string
	overwrite  bool
}

// NewCommandBuilder creates a builder with the default error log level.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// Overwrite enables output file overwriting.
func (b *CommandBuilder) Overwrite() *CommandBuilder {
	b.overwrite = true
	return b
}

// HWAccel selects the hardware decode path.
func (b *CommandBuilder) HWAccel(accel string) *CommandBuilder {
	if accel != "" && accel != "none" {
		b.inputArgs = append(b.inputArgs, "-hwaccel", accel)
	}
	return b
}

// HWAccelDevice sets the hardware acceleration device node.
func (b *CommandBuilder) HWAccelDevice(device string) *CommandBuilder {
	if device != "" {
		b.inputArgs = append(b.inputArgs, "-hwaccel_device", device)
	}
	return b
}

// HWAccelOutputFormat keeps decoded frames on the hardware surface.
func (b *CommandBuilder) HWAccelOutputFormat(format string) *CommandBuilder {
	if format != "" {
		b.inputArgs = append(b.inputArgs, "-hwaccel_output_format", format)
	}
	return b
}

// SeekTo seeks before the input is opened (fast keyframe seek).
func (b *CommandBuilder) SeekTo(seconds float64) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, "-ss", strconv.FormatFloat(seconds, 'f', 2, 64))
	return b
}

// InputArgs adds arbitrary input-side arguments.
func (b *CommandBuilder) InputArgs(args ...string) *CommandBuilder {
	b.inputArgs = append(b.inputArgs, args...)
	return b
}

// Input sets the input source.
func (b *CommandBuilder) Input(input string) *CommandBuilder {
	b.input = input
	return b
}

// VideoFilter appends one filter to the -vf chain.
func (b *CommandBuilder) VideoFilter(filter string) *CommandBuilder {
	b.filterArgs = append(b.filterArgs, filter)
	return b
}

// VideoCodec sets the video codec.
func (b *CommandBuilder) VideoCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", codec)
	return b
}

// VideoPreset sets the encoder speed preset.
func (b *CommandBuilder) VideoPreset(preset string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-preset", preset)
	return b
}

// VideoProfile sets the codec profile.
func (b *CommandBuilder) VideoProfile(profile string) *CommandBuilder {
	if profile != "" {
		b.outputArgs = append(b.outputArgs, "-profile:v", profile)
	}
	return b
}

// VideoLevel sets the codec level.
func (b *CommandBuilder) VideoLevel(level string) *CommandBuilder {
	if level != "" {
		b.outputArgs = append(b.outputArgs, "-level", level)
	}
	return b
}

// QP sets constant-quantizer quality (hardware encoders).
func (b *CommandBuilder) QP(qp int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-qp", strconv.Itoa(qp))
	return b
}

// CRF sets constant-rate-factor quality (software encoders).
func (b *CommandBuilder) CRF(crf int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-crf", strconv.Itoa(crf))
	return b
}

// FrameRate forces the output frame rate.
func (b *CommandBuilder) FrameRate(fps int) *CommandBuilder {
	if fps > 0 {
		b.outputArgs = append(b.outputArgs, "-r", strconv.Itoa(fps))
	}
	return b
}

// AudioCodec sets the audio codec.
func (b *CommandBuilder) AudioCodec(codec string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:a", codec)
	return b
}

// AudioBitrate sets the audio bitrate.
func (b *CommandBuilder) AudioBitrate(bitrate string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-b:a", bitrate)
	return b
}

// NoAudio drops all audio streams.
func (b *CommandBuilder) NoAudio() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-an")
	return b
}

// Frames limits the number of output video frames.
func (b *CommandBuilder) Frames(n int) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-frames:v", strconv.Itoa(n))
	return b
}

// Duration limits the output duration in seconds.
func (b *CommandBuilder) Duration(seconds float64) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-t", strconv.FormatFloat(seconds, 'f', 2, 64))
	return b
}

// OutputArgs adds arbitrary output-side arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// FastStart relocates the moov atom for streaming playback.
func (b *CommandBuilder) FastStart() *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-movflags", "+faststart")
	return b
}

// Output sets the output destination.
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// Build assembles the final command. Argument order: global flags, input
// flags, -i, the -vf chain, output flags, destination.
func (b *CommandBuilder) Build() *Command {
	var args []string

	args = append(args, b.globalArgs...)
	args = append(args, "-loglevel", b.logLevel)
	if b.overwrite {
		args = append(args, "-y")
	}

	args = append(args, b.inputArgs...)
	args = append(args, "-i", b.input)

	if len(b.filterArgs) > 0 {
		args = append(args, "-vf", strings.Join(b.filterArgs, ","))
	}

	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return newCommand(b.binary, args)
}
