package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const probeRunTimeout = 30 * time.Second

// Prober extracts stream and container metadata via ffprobe.
type Prober struct {
	ffprobePath string
	cache       *gocache.Cache
}

// NewProber creates a prober with a short-lived result cache.
func NewProber(ffprobePath string) *Prober {
	return &Prober{
		ffprobePath: ffprobePath,
		cache:       gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// MediaInfo is the subset of probe output the service uses.
type MediaInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	VideoCodec      string  `json:"video_codec"`
	AudioCodec      string  `json:"audio_codec"`
	BitRate         int64   `json:"bit_rate"`
	Size            int64   `json:"size"`
	FormatName      string  `json:"format_name"`
	FPS             float64 `json:"fps"`
}

// Resolution formats the frame size as "1920x1080", or "" when unknown.
func (m MediaInfo) Resolution() string {
	if m.Width <= 0 || m.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

type probeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
}

// Probe runs ffprobe against path. Results are cached briefly so
// pipeline stages sharing one input do not re-probe it.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if hit, ok := p.cache.Get(path); ok {
		info := hit.(MediaInfo)
		return &info, nil
	}

	ctx, cancel := context.WithTimeout(ctx, probeRunTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	info, err := parseProbeOutput(out)
	if err != nil {
		return nil, err
	}
	p.cache.Set(path, *info, gocache.DefaultExpiration)
	return info, nil
}

func parseProbeOutput(out []byte) (*MediaInfo, error) {
	var raw probeResult
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	info := MediaInfo{
		FormatName:      raw.Format.FormatName,
		DurationSeconds: parseProbeFloat(raw.Format.Duration),
		BitRate:         parseProbeInt(raw.Format.BitRate),
		Size:            parseProbeInt(raw.Format.Size),
	}
	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			info.FPS = parseFrameRate(s.AvgFrameRate)
			if info.FPS == 0 {
				info.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	return &info, nil
}

// parseFrameRate parses ffprobe rational rates like "30000/1001".
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(rate, "/")
	if !found {
		return parseProbeFloat(rate)
	}
	d := parseProbeFloat(den)
	if d == 0 {
		return 0
	}
	return parseProbeFloat(num) / d
}

func parseProbeFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseProbeInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
