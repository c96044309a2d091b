// Package ffmpeg builds and supervises FFmpeg/FFprobe invocations: binary
// discovery, deterministic argv construction, the transcode child with
// graceful cancellation, media probing, and encode engine detection.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/jmylchreest/compressr/internal/config"
)

// Binaries holds the resolved FFmpeg tool paths.
type Binaries struct {
	FFmpeg  string `json:"ffmpeg"`
	FFprobe string `json:"ffprobe"`
	Version string `json:"version,omitempty"`
}

var versionPattern = regexp.MustCompile(`ffmpeg version (\S+)`)

// FindBinaries resolves the ffmpeg and ffprobe paths. Configured paths win;
// otherwise the binaries are searched on PATH. The FFmpeg version string is
// read best-effort.
func FindBinaries(ctx context.Context, cfg config.FFmpegConfig) (Binaries, error) {
	ffmpegPath, err := findBinary("ffmpeg", cfg.BinaryPath)
	if err != nil {
		return Binaries{}, err
	}
	ffprobePath, err := findBinary("ffprobe", cfg.ProbePath)
	if err != nil {
		return Binaries{}, err
	}

	b := Binaries{FFmpeg: ffmpegPath, FFprobe: ffprobePath}
	b.Version = readVersion(ctx, ffmpegPath)
	return b, nil
}

func findBinary(name, configured string) (string, error) {
	if configured != "" {
		if !isExecutable(configured) {
			return "", fmt.Errorf("configured %s path %q is not executable", name, configured)
		}
		return configured, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH", name)
	}
	return path, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}

func readVersion(ctx context.Context, ffmpegPath string) string {
	out, err := exec.CommandContext(ctx, ffmpegPath, "-version").Output()
	if err != nil {
		return ""
	}
	return parseVersion(string(out))
}

func parseVersion(output string) string {
	firstLine, _, _ := strings.Cut(output, "\n")
	if m := versionPattern.FindStringSubmatch(firstLine); m != nil {
		return m[1]
	}
	return ""
}
