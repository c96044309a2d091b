package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/sysinfo"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect FFmpeg and the usable encode engine",
	Long: `Probe the FFmpeg installation and hardware encoders.

The command resolves the ffmpeg and ffprobe binaries, runs a test encode
against each hardware engine, and prints the selected engine as JSON.

Examples:
  # Basic detection (JSON output)
  compressr detect

  # Pretty-printed JSON
  compressr detect --pretty`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().Bool("pretty", false, "pretty-print JSON output")
	detectCmd.Flags().Duration("timeout", 30*time.Second, "detection timeout")
}

// DetectionResult contains the full detection output.
type DetectionResult struct {
	FFmpeg FFmpegInfo `json:"ffmpeg"`
	Engine EngineInfo `json:"engine"`
	GPUs   []GPUInfo  `json:"gpus,omitempty"`
}

// FFmpegInfo contains resolved binary information.
type FFmpegInfo struct {
	Version     string `json:"version,omitempty"`
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
}

// EngineInfo describes the engine a transcode would use.
type EngineInfo struct {
	Engine   string `json:"engine"`
	Label    string `json:"label"`
	Hardware bool   `json:"hardware"`
	GPUName  string `json:"gpu_name,omitempty"`
	Device   string `json:"device,omitempty"`
}

// GPUInfo describes one NVIDIA GPU found on the host.
type GPUInfo struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	DriverVersion string `json:"driver_version,omitempty"`
	MemoryTotal   uint64 `json:"memory_total,omitempty"`
}

func runDetect(cmd *cobra.Command, _ []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	pretty, _ := cmd.Flags().GetBool("pretty")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := initLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	binaries, err := ffmpeg.FindBinaries(ctx, cfg.FFmpeg)
	if err != nil {
		return fmt.Errorf("locating ffmpeg: %w", err)
	}

	engine := ffmpeg.DetectEngine(ctx, binaries.FFmpeg, cfg.FFmpeg.HardwareAccel, logger)

	result := DetectionResult{
		FFmpeg: FFmpegInfo{
			Version:     binaries.Version,
			FFmpegPath:  binaries.FFmpeg,
			FFprobePath: binaries.FFprobe,
		},
		Engine: EngineInfo{
			Engine:   string(engine.Engine),
			Label:    engine.Label(),
			Hardware: engine.Hardware(),
			GPUName:  engine.GPUName,
			Device:   engine.Device,
		},
	}

	snap := sysinfo.NewCollector(".").Collect(ctx)
	for _, gpu := range snap.GPUs {
		result.GPUs = append(result.GPUs, GPUInfo{
			Index:         gpu.Index,
			Name:          gpu.Name,
			DriverVersion: gpu.DriverVersion,
			MemoryTotal:   gpu.MemoryTotal,
		})
	}

	var output []byte
	if pretty {
		output, err = json.MarshalIndent(result, "", "  ")
	} else {
		output, err = json.Marshal(result)
	}
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	fmt.Fprintln(os.Stdout, string(output))
	return nil
}
