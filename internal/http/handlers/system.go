package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/compressr/internal/ffmpeg"
	"github.com/jmylchreest/compressr/internal/sysinfo"
)

// SystemHandler exposes host statistics and the detected encode engine.
type SystemHandler struct {
	collector *sysinfo.Collector
	binaries  ffmpeg.Binaries
	engine    ffmpeg.Detection
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(collector *sysinfo.Collector, binaries ffmpeg.Binaries, engine ffmpeg.Detection) *SystemHandler {
	return &SystemHandler{
		collector: collector,
		binaries:  binaries,
		engine:    engine,
	}
}

// SystemInput is the input for the system endpoint.
type SystemInput struct{}

// SystemOutput is the output for the system endpoint.
type SystemOutput struct {
	Body SystemResponse
}

// SystemResponse is the system statistics body.
type SystemResponse struct {
	Hostname      string `json:"hostname" doc:"Host name"`
	OS            string `json:"os" doc:"Operating system"`
	Arch          string `json:"arch" doc:"CPU architecture"`
	HostUptime    string `json:"host_uptime" doc:"Host uptime"`
	ServiceUptime string `json:"service_uptime" doc:"Service uptime"`

	CPUCores   int     `json:"cpu_cores" doc:"Logical CPU count"`
	CPUPercent float64 `json:"cpu_percent" doc:"CPU utilisation percent"`
	LoadAvg1m  float64 `json:"load_avg_1m" doc:"1 minute load average"`
	LoadAvg5m  float64 `json:"load_avg_5m" doc:"5 minute load average"`
	LoadAvg15m float64 `json:"load_avg_15m" doc:"15 minute load average"`

	MemoryTotal     uint64  `json:"memory_total" doc:"Total memory in bytes"`
	MemoryUsed      uint64  `json:"memory_used" doc:"Used memory in bytes"`
	MemoryAvailable uint64  `json:"memory_available" doc:"Available memory in bytes"`
	MemoryPercent   float64 `json:"memory_percent" doc:"Memory utilisation percent"`
	SwapTotal       uint64  `json:"swap_total" doc:"Total swap in bytes"`
	SwapUsed        uint64  `json:"swap_used" doc:"Used swap in bytes"`

	DiskPath    string  `json:"disk_path" doc:"Filesystem holding the workspace"`
	DiskTotal   uint64  `json:"disk_total" doc:"Total disk space in bytes"`
	DiskUsed    uint64  `json:"disk_used" doc:"Used disk space in bytes"`
	DiskFree    uint64  `json:"disk_free" doc:"Free disk space in bytes"`
	DiskPercent float64 `json:"disk_percent" doc:"Disk utilisation percent"`

	GPUs []GPUStat `json:"gpus,omitempty" doc:"NVIDIA GPUs reported by nvidia-smi"`

	Encoder EncoderInfo `json:"encoder" doc:"Detected encode engine and binaries"`
}

// GPUStat describes one GPU in the system response.
type GPUStat struct {
	Index         int     `json:"index" doc:"GPU index"`
	Name          string  `json:"name" doc:"GPU model name"`
	DriverVersion string  `json:"driver_version,omitempty" doc:"Driver version"`
	Utilization   float64 `json:"utilization" doc:"GPU utilisation percent"`
	MemoryUsed    uint64  `json:"memory_used" doc:"Used GPU memory in bytes"`
	MemoryTotal   uint64  `json:"memory_total" doc:"Total GPU memory in bytes"`
	Temperature   int     `json:"temperature" doc:"GPU temperature in Celsius"`
}

// EncoderInfo describes the detected encode engine.
type EncoderInfo struct {
	Engine        string `json:"engine" doc:"cpu, nvidia or vaapi"`
	Label         string `json:"label" doc:"Human-readable engine label"`
	GPUName       string `json:"gpu_name,omitempty" doc:"GPU model when hardware encoding"`
	Device        string `json:"device,omitempty" doc:"Device path for VAAPI"`
	FFmpegPath    string `json:"ffmpeg_path" doc:"Resolved ffmpeg binary"`
	FFprobePath   string `json:"ffprobe_path" doc:"Resolved ffprobe binary"`
	FFmpegVersion string `json:"ffmpeg_version,omitempty" doc:"FFmpeg version string"`
}

// Register registers the system route with the API.
func (h *SystemHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSystem",
		Method:      "GET",
		Path:        "/api/v1/system",
		Summary:     "System statistics",
		Description: "Returns host, CPU, memory, disk and GPU statistics plus the detected encode engine",
		Tags:        []string{"System"},
	}, h.GetSystem)
}

// GetSystem returns a point-in-time system snapshot.
func (h *SystemHandler) GetSystem(ctx context.Context, input *SystemInput) (*SystemOutput, error) {
	snap := h.collector.Collect(ctx)

	resp := SystemResponse{
		Hostname:      snap.Hostname,
		OS:            snap.OS,
		Arch:          snap.Arch,
		HostUptime:    snap.HostUptime.Round(time.Second).String(),
		ServiceUptime: snap.ServiceUptime.Round(time.Second).String(),

		CPUCores:   snap.CPUCores,
		CPUPercent: snap.CPUPercent,
		LoadAvg1m:  snap.LoadAvg1m,
		LoadAvg5m:  snap.LoadAvg5m,
		LoadAvg15m: snap.LoadAvg15m,

		MemoryTotal:     snap.MemoryTotal,
		MemoryUsed:      snap.MemoryUsed,
		MemoryAvailable: snap.MemoryAvailable,
		MemoryPercent:   snap.MemoryPercent,
		SwapTotal:       snap.SwapTotal,
		SwapUsed:        snap.SwapUsed,

		DiskPath:    snap.DiskPath,
		DiskTotal:   snap.DiskTotal,
		DiskUsed:    snap.DiskUsed,
		DiskFree:    snap.DiskFree,
		DiskPercent: snap.DiskPercent,

		Encoder: EncoderInfo{
			Engine:        string(h.engine.Engine),
			Label:         h.engine.Label(),
			GPUName:       h.engine.GPUName,
			Device:        h.engine.Device,
			FFmpegPath:    h.binaries.FFmpeg,
			FFprobePath:   h.binaries.FFprobe,
			FFmpegVersion: h.binaries.Version,
		},
	}

	resp.GPUs = make([]GPUStat, 0, len(snap.GPUs))
	for _, gpu := range snap.GPUs {
		resp.GPUs = append(resp.GPUs, GPUStat{
			Index:         gpu.Index,
			Name:          gpu.Name,
			DriverVersion: gpu.DriverVersion,
			Utilization:   gpu.Utilization,
			MemoryUsed:    gpu.MemoryUsed,
			MemoryTotal:   gpu.MemoryTotal,
			Temperature:   gpu.Temperature,
		})
	}

	return &SystemOutput{Body: resp}, nil
}
