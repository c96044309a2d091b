package ffmpeg

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Engine is the detected FFmpeg execution target.
type Engine string

const (
	EngineCPU    Engine = "cpu"
	EngineNVIDIA Engine = "nvidia"
	EngineVAAPI  Engine = "vaapi"
)

const vaapiRenderDevice = "/dev/dri/renderD128"

const probeTimeout = 15 * time.Second

// Detection is the outcome of engine probing.
type Detection struct {
	Engine  Engine `json:"engine"`
	GPUName string `json:"gpu_name,omitempty"`
	Device  string `json:"device,omitempty"`
}

// Hardware reports whether a hardware encoder is usable.
func (d Detection) Hardware() bool {
	return d.Engine != EngineCPU
}

// Label is the engine tag shown in progress messages and run records.
func (d Detection) Label() string {
	switch d.Engine {
	case EngineNVIDIA:
		if d.GPUName != "" {
			return "NVIDIA GPU (" + d.GPUName + ")"
		}
		return "NVIDIA GPU"
	case EngineVAAPI:
		return "VAAPI"
	default:
		return "CPU"
	}
}

// Detector probes which encode engines actually work on this host.
type Detector struct {
	ffmpegPath string
	logger     *slog.Logger
}

// NewDetector creates an engine detector.
func NewDetector(ffmpegPath string, logger *slog.Logger) *Detector {
	return &Detector{
		ffmpegPath: ffmpegPath,
		logger:     logger.With("component", "engine-detect"),
	}
}

// Detect probes NVIDIA first, then VAAPI, falling back to CPU. A listed
// encoder is not trusted until a nullsrc test encode succeeds.
func (d *Detector) Detect(ctx context.Context) Detection {
	if name, ok := d.probeNVIDIA(ctx); ok {
		d.logger.Info("nvidia encoder available", "gpu", name)
		return Detection{Engine: EngineNVIDIA, GPUName: name}
	}
	if d.probeVAAPI(ctx) {
		d.logger.Info("vaapi encoder available", "device", vaapiRenderDevice)
		return Detection{Engine: EngineVAAPI, Device: vaapiRenderDevice}
	}
	d.logger.Info("no hardware encoder, using cpu")
	return Detection{Engine: EngineCPU}
}

func (d *Detector) probeNVIDIA(ctx context.Context) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nvidia-smi", "--query-gpu=name", "--format=csv,noheader").Output()
	if err != nil {
		d.logger.Debug("nvidia-smi not usable", "error", err)
		return "", false
	}
	name, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if name == "" {
		return "", false
	}

	// nvidia-smi seeing a GPU does not mean FFmpeg can encode on it.
	test := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-hwaccel", "cuda",
		"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
		"-c:v", "h264_nvenc",
		"-t", "0.01",
		"-f", "null", "-")
	if err := test.Run(); err != nil {
		d.logger.Debug("nvenc test encode failed", "error", err)
		return "", false
	}
	return name, true
}

func (d *Detector) probeVAAPI(ctx context.Context) bool {
	if runtime.GOOS != "linux" {
		return false
	}
	if _, err := os.Stat(vaapiRenderDevice); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	test := exec.CommandContext(ctx, d.ffmpegPath,
		"-hide_banner",
		"-vaapi_device", vaapiRenderDevice,
		"-f", "lavfi", "-i", "nullsrc=s=320x240:d=0.1",
		"-vf", "format=nv12,hwupload",
		"-c:v", "h264_vaapi",
		"-t", "0.01",
		"-f", "null", "-")
	if err := test.Run(); err != nil {
		d.logger.Debug("vaapi test encode failed", "error", err)
		return false
	}
	return true
}

// DetectEngine applies the config kill switch and probes hardware.
func DetectEngine(ctx context.Context, ffmpegPath string, hardwareAccel bool, logger *slog.Logger) Detection {
	if !hardwareAccel {
		logger.Info("hardware acceleration disabled by config")
		return Detection{Engine: EngineCPU}
	}
	return NewDetector(ffmpegPath, logger).Detect(ctx)
}
