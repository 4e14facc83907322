// Package diagnostics captures host resource snapshots when the sample path
// starts losing data.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/spf13/afero"

	"github.com/tphakala/hackrf-stream/internal/cpuspec"
	"github.com/tphakala/hackrf-stream/internal/logger"
)

// cpuSampleWindow is how long CPU utilisation is measured for
const cpuSampleWindow = time.Second

// Snapshot is a point-in-time view of host resources.
// Fields that could not be read are left zero and the error is kept in Errors.
type Snapshot struct {
	Reason    string
	Taken     time.Time
	Hostname  string
	Platform  string
	Uptime    time.Duration
	CPUCount  int
	CPU       cpuspec.CPUSpec
	CPUUsage  float64 // percent over cpuSampleWindow
	RAMUsage  float64 // percent
	SwapUsage float64 // percent
	DiskPath  string
	DiskUsage float64 // percent of the filesystem holding DiskPath
	DiskFree  uint64

	ProcessRSS     uint64
	ProcessThreads int32
	Goroutines     int
	HeapAlloc      uint64
	NumGC          uint32

	Errors []string
}

// Capture collects a snapshot. diskPath selects the filesystem whose usage is
// reported, typically the recording directory; empty skips disk usage.
func Capture(ctx context.Context, reason, diskPath string) *Snapshot {
	snap := &Snapshot{
		Reason:     reason,
		Taken:      time.Now(),
		CPUCount:   runtime.NumCPU(),
		CPU:        cpuspec.GetCPUSpec(),
		Goroutines: runtime.NumGoroutine(),
		DiskPath:   diskPath,
	}
	note := func(what string, err error) {
		snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", what, err))
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		snap.Hostname = info.Hostname
		snap.Platform = fmt.Sprintf("%s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
		snap.Uptime = time.Duration(info.Uptime) * time.Second
	} else {
		note("host", err)
	}

	if pct, err := cpu.PercentWithContext(ctx, cpuSampleWindow, false); err == nil && len(pct) > 0 {
		snap.CPUUsage = pct[0]
	} else if err != nil {
		note("cpu", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		snap.RAMUsage = vm.UsedPercent
	} else {
		note("memory", err)
	}

	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil {
		snap.SwapUsage = swap.UsedPercent
	} else {
		note("swap", err)
	}

	if diskPath != "" {
		if usage, err := disk.UsageWithContext(ctx, diskPath); err == nil {
			snap.DiskUsage = usage.UsedPercent
			snap.DiskFree = usage.Free
		} else {
			note("disk", err)
		}
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if memInfo, err := proc.MemoryInfoWithContext(ctx); err == nil {
			snap.ProcessRSS = memInfo.RSS
		} else {
			note("process memory", err)
		}
		if threads, err := proc.NumThreadsWithContext(ctx); err == nil {
			snap.ProcessThreads = threads
		}
	} else {
		note("process", err)
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snap.HeapAlloc = m.HeapAlloc
	snap.NumGC = m.NumGC

	return snap
}

// String renders the snapshot as a human readable report
func (s *Snapshot) String() string {
	var b strings.Builder

	separator := "======== DEBUG INFO START ========"
	fmt.Fprintf(&b, "%s\n", separator)
	fmt.Fprintf(&b, "Reason: %s\n", s.Reason)
	fmt.Fprintf(&b, "Taken: %s\n", s.Taken.Format(time.RFC3339))
	if s.Hostname != "" {
		fmt.Fprintf(&b, "Host: %s, %s, up %s\n", s.Hostname, s.Platform, s.Uptime)
	}
	fmt.Fprintf(&b, "CPU: %s\n", s.CPU)
	fmt.Fprintf(&b, "CPU Utilization: %.2f%% of %d cores\n", s.CPUUsage, s.CPUCount)
	fmt.Fprintf(&b, "RAM Usage: %.2f%%\n", s.RAMUsage)
	fmt.Fprintf(&b, "Swap Usage: %.2f%%\n", s.SwapUsage)
	if s.DiskPath != "" {
		fmt.Fprintf(&b, "Disk Usage (%s): %.2f%%, %d MiB free\n", s.DiskPath, s.DiskUsage, bToMb(s.DiskFree))
	}
	fmt.Fprintf(&b, "Process: RSS = %d MiB, Threads = %d\n", bToMb(s.ProcessRSS), s.ProcessThreads)
	fmt.Fprintf(&b, "Go Runtime: Goroutines = %d, HeapAlloc = %d MiB, NumGC = %d\n",
		s.Goroutines, bToMb(s.HeapAlloc), s.NumGC)
	for _, e := range s.Errors {
		fmt.Fprintf(&b, "Unavailable: %s\n", e)
	}
	fmt.Fprintf(&b, "%s\n", strings.ReplaceAll(separator, "START", "END"))

	return b.String()
}

// Fields returns the snapshot as structured log fields
func (s *Snapshot) Fields() []logger.Field {
	return []logger.Field{
		logger.String("reason", s.Reason),
		logger.Float64("cpu_percent", s.CPUUsage),
		logger.Float64("ram_percent", s.RAMUsage),
		logger.Float64("swap_percent", s.SwapUsage),
		logger.Float64("disk_percent", s.DiskUsage),
		logger.Uint64("rss_bytes", s.ProcessRSS),
		logger.Int("goroutines", s.Goroutines),
	}
}

// WriteDebugFile writes the report to dir as debug_<timestamp>.txt and returns its path
func WriteDebugFile(fs afero.Fs, dir string, s *Snapshot) (string, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create debug directory: %w", err)
	}
	name := fmt.Sprintf("debug_%s.txt", s.Taken.Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(fs, path, []byte(s.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write debug file: %w", err)
	}
	return path, nil
}

// bToMb converts bytes to megabytes
func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
