package memory

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"video-ingest/internal/logging"
	"video-ingest/internal/metrics"
)

// DefaultMemoryRatio is the share of the container limit given to the
// Go heap. This service always spawns ffmpeg/ffprobe children and may
// load libvips through CGO, so a quarter of the limit stays reserved
// for them.
const DefaultMemoryRatio = 0.75

// ConfigResult reports how GOMEMLIMIT ended up configured.
type ConfigResult struct {
	// Configured indicates whether GOMEMLIMIT was set.
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none".
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set).
	ContainerLimit int64

	// GoMemLimit is the configured GOMEMLIMIT in bytes (0 if not set).
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable).
	Ratio float64
}

// ConfigureFromEnv sets GOMEMLIMIT from the container's memory limit.
// Call early in main, before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: standard Go variable; takes precedence if set
//   - MEMORY_LIMIT: container limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default 0.75)
func ConfigureFromEnv() ConfigResult {
	if value := os.Getenv("GOMEMLIMIT"); value != "" {
		return adoptRuntimeLimit(value)
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT alone")
		return ConfigResult{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", raw, err)
		return ConfigResult{Source: "none"}
	}

	ratio := ratioFromEnv()
	goMemLimit := int64(float64(containerLimit) * ratio)

	debug.SetMemoryLimit(goMemLimit)
	metrics.GoMemLimit.Set(float64(goMemLimit))

	logging.Info("GOMEMLIMIT set to %s, %.0f%% of the %s container limit",
		formatBytes(goMemLimit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}

// adoptRuntimeLimit records a GOMEMLIMIT the runtime already applied at
// startup. The value is read back from the runtime rather than parsed
// here, since GOMEMLIMIT accepts unit suffixes.
func adoptRuntimeLimit(value string) ConfigResult {
	var result ConfigResult

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		result = ConfigResult{
			Configured: true,
			Source:     "GOMEMLIMIT",
			GoMemLimit: limit,
		}
		metrics.GoMemLimit.Set(float64(limit))
	}

	logging.Info("GOMEMLIMIT set via environment: %s", value)
	return result
}

// ratioFromEnv reads MEMORY_RATIO, falling back to DefaultMemoryRatio
// when it is unset, unparseable, or outside (0, 1].
func ratioFromEnv() float64 {
	raw := os.Getenv("MEMORY_RATIO")
	if raw == "" {
		return DefaultMemoryRatio
	}

	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", raw, err, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	if ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// formatBytes renders a byte count in binary units for log lines.
func formatBytes(b int64) string {
	units := []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

	v, i := float64(b), 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", b)
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}
