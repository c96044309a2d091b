package pipeline

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// renderFilename expands the output filename template. The result always
// carries an .mp4 extension and never contains a path separator.
func renderFilename(template, originalName, preset, resolution, codec string, at time.Time) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	if base == "" {
		base = "video"
	}

	r := strings.NewReplacer(
		"{original_name}", base,
		"{preset}", preset,
		"{resolution}", resolution,
		"{codec}", codec,
		"{date}", at.Format("2006-01-02"),
		"{time}", at.Format("15-04-05"),
	)
	name := strings.TrimSpace(r.Replace(template))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	if name == "" {
		name = base
	}
	if !strings.EqualFold(filepath.Ext(name), ".mp4") {
		name += ".mp4"
	}
	return name
}

// resolutionTag renders a height as a template token, "720p" style.
func resolutionTag(height int) string {
	if height <= 0 {
		return "original"
	}
	return strconv.Itoa(height) + "p"
}

// codecTag maps an encoder name to a short filename token: "libx265"
// becomes "x265", "h264_nvenc" becomes "h264".
func codecTag(codec string) string {
	tag := strings.TrimPrefix(codec, "lib")
	if i := strings.IndexByte(tag, '_'); i > 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return "video"
	}
	return tag
}
