package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/compressr/internal/settings"
)

// Watermark is the drawtext overlay burned into the encode.
type Watermark struct {
	Text     string
	Position string
}

// NewTranscodeCommand translates a resolved encode profile into a full
// FFmpeg argv. The same profile, paths, watermark and engine always
// produce the same argv.
func NewTranscodeCommand(binary string, profile settings.EncodeProfile, inputPath, outputPath string, wm *Watermark, engine Engine) *Command {
	b := NewCommandBuilder(binary).HideBanner().Overwrite()

	useCUDA := engine == EngineNVIDIA && profile.HardwareAccel && strings.HasSuffix(profile.Codec, "_nvenc")
	useVAAPI := engine == EngineVAAPI && profile.HardwareAccel && strings.HasSuffix(profile.Codec, "_vaapi")
	switch {
	case useCUDA:
		b.HWAccel("cuda").HWAccelOutputFormat("cuda")
	case useVAAPI:
		b.HWAccel("vaapi").HWAccelDevice(vaapiRenderDevice).HWAccelOutputFormat("vaapi")
	}

	b.Input(inputPath)

	if profile.ScaleHeight > 0 {
		h := strconv.Itoa(profile.ScaleHeight)
		switch {
		case useCUDA:
			b.VideoFilter("scale_cuda=-2:" + h)
		case useVAAPI:
			b.VideoFilter("scale_vaapi=-2:" + h)
		default:
			b.VideoFilter("scale=-2:" + h)
		}
	}

	if wm != nil && wm.Text != "" {
		// drawtext only works on system memory frames, so hardware
		// surfaces are downloaded around it and re-uploaded after.
		if useCUDA || useVAAPI {
			b.VideoFilter("hwdownload").VideoFilter("format=nv12")
		}
		b.VideoFilter(drawtextFilter(wm))
		if useCUDA {
			b.VideoFilter("hwupload_cuda")
		}
		if useVAAPI {
			b.VideoFilter("hwupload")
		}
	}

	b.VideoCodec(profile.Codec).
		VideoPreset(profile.SpeedPreset).
		VideoProfile(profile.Profile).
		VideoLevel(profile.Level)

	if profile.IsHardware() {
		b.QP(profile.QualityQP)
	} else {
		b.CRF(profile.QualityQP)
	}

	b.FrameRate(profile.FPS).
		AudioCodec("aac").
		AudioBitrate(profile.AudioBitrate).
		FastStart().
		Output(outputPath)

	return b.Build()
}

func drawtextFilter(wm *Watermark) string {
	return fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=24:box=1:boxcolor=black@0.5:boxborderw=5:%s",
		escapeDrawtext(wm.Text), watermarkXY(wm.Position))
}

// watermarkXY maps a named corner to drawtext coordinates with a 10px
// margin. Unknown names land bottom-right.
func watermarkXY(position string) string {
	switch position {
	case "top-left":
		return "x=10:y=10"
	case "top-right":
		return "x=w-tw-10:y=10"
	case "bottom-left":
		return "x=10:y=h-th-10"
	case "center":
		return "x=(w-tw)/2:y=(h-th)/2"
	default:
		return "x=w-tw-10:y=h-th-10"
	}
}

var drawtextEscaper = strings.NewReplacer(
	`\`, `\\`,
	":", `\:`,
	"%", `\%`,
	"'", "’",
)

// escapeDrawtext makes arbitrary text safe inside a drawtext filter
// argument. Single quotes would close the text expression, so they are
// swapped for a typographic apostrophe instead of escaped.
func escapeDrawtext(text string) string {
	return drawtextEscaper.Replace(text)
}
