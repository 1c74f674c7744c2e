package memory

import (
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"video-ingest/internal/logging"
	"video-ingest/internal/metrics"
)

// Config holds memory monitor thresholds.
type Config struct {
	// MemoryLimitBytes is the soft limit to measure against
	// (0 = use GOMEMLIMIT, or disable if that is unset too).
	MemoryLimitBytes int64
	// HighWaterMark is the fraction of the limit at which optional work
	// (poster caching) starts being shed.
	HighWaterMark float64
	// CriticalWaterMark is the fraction at which heap-heavy work pauses
	// entirely until usage drops back below HighWaterMark.
	CriticalWaterMark float64
	// CheckInterval is how often usage is sampled.
	CheckInterval time.Duration
}

const (
	defaultHighWater     = 0.7
	defaultCriticalWater = 0.85
	defaultCheckInterval = 5 * time.Second
)

// DefaultConfig returns the thresholds the service runs with.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     defaultHighWater,
		CriticalWaterMark: defaultCriticalWater,
		CheckInterval:     defaultCheckInterval,
	}
}

// Monitor samples heap usage and provides backpressure signals to the
// poster generator, whose frame decodes are the service's only large
// in-heap allocations. Transcodes run in ffmpeg child processes and are
// not subject to the Go heap limit.
type Monitor struct {
	config   Config
	stopChan chan struct{}

	mu        sync.RWMutex
	limit     int64
	current   uint64
	isPaused  bool
	pauseChan chan struct{}
}

// effectiveLimit resolves the byte budget to measure against, preferring
// explicit configuration over the runtime's GOMEMLIMIT. SetMemoryLimit
// reports math.MaxInt64 when GOMEMLIMIT was never set.
func effectiveLimit(configured int64) int64 {
	if configured > 0 {
		return configured
	}
	if fromRuntime := debug.SetMemoryLimit(-1); fromRuntime > 0 && fromRuntime != math.MaxInt64 {
		return fromRuntime
	}
	return 0
}

func mib(bytes uint64) float64 {
	return float64(bytes) / (1 << 20)
}

// NewMonitor creates a monitor. With no explicit limit it falls back to
// GOMEMLIMIT; with neither, backpressure is disabled.
func NewMonitor(config Config) *Monitor {
	m := &Monitor{config: config, limit: effectiveLimit(config.MemoryLimitBytes)}
	m.stopChan = make(chan struct{})
	m.pauseChan = make(chan struct{})

	switch {
	case m.limit == 0:
		logging.Warn("Memory monitor: no memory limit configured, backpressure disabled")
	case config.MemoryLimitBytes == 0:
		logging.Info("Memory monitor using GOMEMLIMIT: %d bytes (%.1f MB)", m.limit, mib(uint64(m.limit)))
	}
	return m
}

// Start begins periodic sampling. A monitor without a limit stays idle.
func (m *Monitor) Start() {
	if m.limit > 0 {
		go m.monitorLoop()
	}
}

// Stop ends monitoring and releases any goroutines blocked in
// WaitIfPaused.
func (m *Monitor) Stop() {
	close(m.stopChan)
}

func (m *Monitor) monitorLoop() {
	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.checkMemory()
		}
	}
}

func (m *Monitor) checkMemory() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	m.observe(stats.Alloc)
}

// observe feeds one heap sample through the pause state machine.
// Pausing trips at CriticalWaterMark; resuming requires falling back
// below HighWaterMark, so the state cannot flap between the two marks.
func (m *Monitor) observe(alloc uint64) {
	var (
		limited bool
		usage   float64
		paused  bool
		resumed bool
	)

	m.mu.Lock()
	m.current = alloc
	if m.limit > 0 {
		limited = true
		usage = float64(alloc) / float64(m.limit)

		switch {
		case !m.isPaused && usage >= m.config.CriticalWaterMark:
			m.isPaused = true
			paused = true
		case m.isPaused && usage < m.config.HighWaterMark:
			m.isPaused = false
			close(m.pauseChan)
			m.pauseChan = make(chan struct{})
			resumed = true
		}
	}
	m.mu.Unlock()

	if !limited {
		return
	}

	metrics.MemoryUsageRatio.Set(usage)

	switch {
	case paused:
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		logging.Warn("Memory critical: %.1f MB is %.0f%% of the limit, pausing poster generation", mib(alloc), usage*100)
		go runtime.GC()
	case resumed:
		metrics.MemoryPaused.Set(0)
		logging.Info("Memory recovered: %.1f MB is %.0f%% of the limit, resuming", mib(alloc), usage*100)
	}
}

// WaitIfPaused blocks while usage is critical and returns true once it
// is safe to proceed. It returns false if the monitor was stopped.
func (m *Monitor) WaitIfPaused() bool {
	m.mu.RLock()
	paused, resume := m.isPaused, m.pauseChan
	m.mu.RUnlock()

	if !paused {
		return true
	}
	select {
	case <-resume:
		return true
	case <-m.stopChan:
		return false
	}
}

// ShouldThrottle reports whether usage is above the high water mark.
// Callers shed optional work (cache writes) while this holds.
func (m *Monitor) ShouldThrottle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.limit == 0 {
		return false
	}
	return float64(m.current)/float64(m.limit) >= m.config.HighWaterMark
}

// IsPaused reports whether heap-heavy work is currently paused.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isPaused
}

// GetStats returns the last sampled usage, the configured limit, and
// their ratio (0 when no limit is set).
func (m *Monitor) GetStats() (current, limit int64, usage float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	current = int64(min(m.current, uint64(math.MaxInt64)))
	limit = m.limit
	if limit > 0 {
		usage = float64(m.current) / float64(limit)
	}
	return current, limit, usage
}
