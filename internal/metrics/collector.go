package metrics

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"video-ingest/internal/logging"
)

// StatsProvider supplies index-wide artifact totals for gauge updates.
// The artifact index implements this via a small adapter in main.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current artifact library statistics
type Stats struct {
	TotalArtifacts       int64
	TotalBytes           int64
	TotalSourceBytes     int64
	TotalDurationSeconds float64
}

// StorageHealthChecker lets the collector drive periodic database health
// checks without importing the database package.
type StorageHealthChecker interface {
	CheckStorageHealth()
	UpdateDBMetrics()
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider        StatsProvider
	storageHealthChecker StorageHealthChecker
	dbPath               string
	posterCacheDir       string
	interval             time.Duration
	stopChan             chan struct{}
}

// NewCollector creates a new metrics collector. dbPath is used to report
// SQLite file sizes and may be empty to skip that.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// SetStorageHealthChecker registers a database health checker to run each
// collection cycle.
func (c *Collector) SetStorageHealthChecker(checker StorageHealthChecker) {
	c.storageHealthChecker = checker
}

// SetPosterCacheDir enables poster cache size collection for the given
// directory.
func (c *Collector) SetPosterCacheDir(dir string) {
	c.posterCacheDir = dir
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.storageHealthChecker != nil {
		c.storageHealthChecker.CheckStorageHealth()
		c.storageHealthChecker.UpdateDBMetrics()
	}

	c.collectLibraryStats()
	c.collectDBSize()
	c.collectPosterCacheSize()
	c.collectMemoryMetrics()
}

func (c *Collector) collectLibraryStats() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Debug("Metrics collection: stats query failed: %v", err)
		return
	}

	ArtifactsTotal.Set(float64(stats.TotalArtifacts))
	ArtifactBytesTotal.Set(float64(stats.TotalBytes))
	SourceBytesTotal.Set(float64(stats.TotalSourceBytes))
	ArtifactSecondsTotal.Set(stats.TotalDurationSeconds)

	logging.Debug("Metrics collected: artifacts=%d, bytes=%d, duration=%.1fs",
		stats.TotalArtifacts, stats.TotalBytes, stats.TotalDurationSeconds)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		if info, err := os.Stat(path); err == nil {
			DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		}
	}
}

func (c *Collector) collectPosterCacheSize() {
	if c.posterCacheDir == "" {
		return
	}

	size, count, err := dirStats(c.posterCacheDir)
	if err != nil {
		// Missing cache directory just reports empty
		PosterCacheSize.Set(0)
		PosterCacheCount.Set(0)
		return
	}

	PosterCacheSize.Set(float64(size))
	PosterCacheCount.Set(float64(count))
}

func (c *Collector) collectMemoryMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	GoMemAllocBytes.Set(float64(m.Alloc))
	GoMemSysBytes.Set(float64(m.Sys))
	GoGCRuns.Set(float64(m.NumGC))
}

// dirStats walks dir and returns the total size and file count.
func dirStats(dir string) (size int64, count int64, err error) {
	err = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		info, infoErr := d.Info()
		if infoErr != nil {
			return infoErr
		}
		size += info.Size()
		count++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return size, count, nil
}
