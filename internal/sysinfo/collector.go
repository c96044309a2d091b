// Package sysinfo collects host statistics for the /usage chat command and
// the diagnostics API.
package sysinfo

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point-in-time view of host resources. Fields that could not
// be probed are left at their zero value.
type Snapshot struct {
	Hostname      string        `json:"hostname"`
	OS            string        `json:"os"`
	Arch          string        `json:"arch"`
	HostUptime    time.Duration `json:"host_uptime"`
	ServiceUptime time.Duration `json:"service_uptime"`

	CPUCores   int     `json:"cpu_cores"`
	CPUPercent float64 `json:"cpu_percent"`
	LoadAvg1m  float64 `json:"load_avg_1m"`
	LoadAvg5m  float64 `json:"load_avg_5m"`
	LoadAvg15m float64 `json:"load_avg_15m"`

	MemoryTotal     uint64  `json:"memory_total"`
	MemoryUsed      uint64  `json:"memory_used"`
	MemoryAvailable uint64  `json:"memory_available"`
	MemoryPercent   float64 `json:"memory_percent"`
	SwapTotal       uint64  `json:"swap_total"`
	SwapUsed        uint64  `json:"swap_used"`

	DiskPath    string  `json:"disk_path"`
	DiskTotal   uint64  `json:"disk_total"`
	DiskUsed    uint64  `json:"disk_used"`
	DiskFree    uint64  `json:"disk_free"`
	DiskPercent float64 `json:"disk_percent"`

	GPUs []GPUStat `json:"gpus,omitempty"`
}

// GPUStat describes one NVIDIA GPU as reported by nvidia-smi.
type GPUStat struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	DriverVersion string  `json:"driver_version"`
	Utilization   float64 `json:"utilization"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
	Temperature   int     `json:"temperature"`
}

// Collector gathers system statistics. The disk figures are reported for the
// filesystem holding the workspace.
type Collector struct {
	hostname  string
	startTime time.Time
	diskPath  string
}

// NewCollector creates a stats collector reporting disk usage for diskPath.
func NewCollector(diskPath string) *Collector {
	hostname, _ := os.Hostname()
	return &Collector{
		hostname:  hostname,
		startTime: time.Now(),
		diskPath:  diskPath,
	}
}

// Collect gathers current system statistics. Individual probes are
// best-effort; a failing probe leaves its fields zero.
func (c *Collector) Collect(ctx context.Context) *Snapshot {
	snap := &Snapshot{
		Hostname:      c.hostname,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		ServiceUptime: time.Since(c.startTime),
		DiskPath:      c.diskPath,
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		snap.HostUptime = time.Duration(uptime) * time.Second
	}

	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		snap.CPUCores = cores
	}
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	if loadAvg, err := load.AvgWithContext(ctx); err == nil {
		snap.LoadAvg1m = loadAvg.Load1
		snap.LoadAvg5m = loadAvg.Load5
		snap.LoadAvg15m = loadAvg.Load15
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.MemoryTotal = memInfo.Total
		snap.MemoryUsed = memInfo.Used
		snap.MemoryAvailable = memInfo.Available
		snap.MemoryPercent = memInfo.UsedPercent
	}
	if swapInfo, err := mem.SwapMemoryWithContext(ctx); err == nil {
		snap.SwapTotal = swapInfo.Total
		snap.SwapUsed = swapInfo.Used
	}

	if diskInfo, err := disk.UsageWithContext(ctx, c.diskPath); err == nil {
		snap.DiskTotal = diskInfo.Total
		snap.DiskUsed = diskInfo.Used
		snap.DiskFree = diskInfo.Free
		snap.DiskPercent = diskInfo.UsedPercent
	}

	snap.GPUs = c.collectGPUs(ctx)

	return snap
}

// collectGPUs queries nvidia-smi. Hosts without it report no GPUs.
func (c *Collector) collectGPUs(ctx context.Context) []GPUStat {
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,driver_version,utilization.gpu,memory.used,memory.total,temperature.gpu",
		"--format=csv,noheader,nounits")

	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	return parseGPUOutput(output)
}

// parseGPUOutput parses nvidia-smi CSV output (noheader, nounits).
func parseGPUOutput(output []byte) []GPUStat {
	var gpus []GPUStat
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		parts := strings.Split(line, ", ")
		if len(parts) < 7 {
			continue
		}

		index, _ := strconv.Atoi(strings.TrimSpace(parts[0]))
		utilization, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		memUsed, _ := strconv.ParseUint(strings.TrimSpace(parts[4]), 10, 64)
		memTotal, _ := strconv.ParseUint(strings.TrimSpace(parts[5]), 10, 64)
		temp, _ := strconv.Atoi(strings.TrimSpace(parts[6]))

		gpus = append(gpus, GPUStat{
			Index:         index,
			Name:          strings.TrimSpace(parts[1]),
			DriverVersion: strings.TrimSpace(parts[2]),
			Utilization:   utilization,
			MemoryUsed:    memUsed * 1024 * 1024, // MiB to bytes
			MemoryTotal:   memTotal * 1024 * 1024,
			Temperature:   temp,
		})
	}
	return gpus
}
