// Package cpuspec reports host CPU details that bear on sample throughput.
package cpuspec

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName      string
	Vendor         string
	PhysicalCores  int
	LogicalCores   int
	ThreadsPerCore int
	L2CacheBytes   int // -1 when unknown
	Features       []string
}

// vectorFeatures are the extensions that speed up IQ conversion loops
var vectorFeatures = []cpuid.FeatureID{
	cpuid.SSE2, cpuid.SSSE3, cpuid.SSE4, cpuid.SSE42,
	cpuid.AVX, cpuid.AVX2, cpuid.AVX512F, cpuid.ASIMD,
}

// GetCPUSpec returns the specification of the CPU this process runs on
func GetCPUSpec() CPUSpec {
	return fromInfo(&cpuid.CPU)
}

func fromInfo(info *cpuid.CPUInfo) CPUSpec {
	spec := CPUSpec{
		BrandName:      strings.TrimSpace(info.BrandName),
		Vendor:         info.VendorString,
		PhysicalCores:  info.PhysicalCores,
		LogicalCores:   info.LogicalCores,
		ThreadsPerCore: info.ThreadsPerCore,
		L2CacheBytes:   info.Cache.L2,
	}
	for _, f := range vectorFeatures {
		if info.Supports(f) {
			spec.Features = append(spec.Features, f.String())
		}
	}
	return spec
}

// HasVectorUnit reports whether any SIMD extension was detected
func (c CPUSpec) HasVectorUnit() bool {
	return len(c.Features) > 0
}

// GetOptimalThreadCount returns how many goroutines CPU-bound work should use.
// It prefers physical cores and never exceeds what the runtime may schedule.
func (c CPUSpec) GetOptimalThreadCount() int {
	available := runtime.GOMAXPROCS(0)
	switch {
	case c.PhysicalCores > 0:
		return min(c.PhysicalCores, available)
	case c.LogicalCores > 0:
		return min(c.LogicalCores, available)
	default:
		return available
	}
}

func (c CPUSpec) String() string {
	brand := c.BrandName
	if brand == "" {
		brand = "unknown CPU"
	}
	features := "none"
	if c.HasVectorUnit() {
		features = strings.Join(c.Features, " ")
	}
	return fmt.Sprintf("%s (%s), %d physical / %d logical cores, SIMD: %s",
		brand, c.Vendor, c.PhysicalCores, c.LogicalCores, features)
}
