package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeStatsProvider counts GetStats calls and serves canned library totals.
type fakeStatsProvider struct {
	mu    sync.Mutex
	stats Stats
	err   error
	calls int
}

func (f *fakeStatsProvider) GetStats(_ context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return Stats{}, f.err
	}
	return f.stats, nil
}

func (f *fakeStatsProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeHealthChecker counts storage health invocations.
type fakeHealthChecker struct {
	mu      sync.Mutex
	checks  int
	updates int
}

func (f *fakeHealthChecker) CheckStorageHealth() {
	f.mu.Lock()
	f.checks++
	f.mu.Unlock()
}

func (f *fakeHealthChecker) UpdateDBMetrics() {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
}

func (f *fakeHealthChecker) counts() (checks, updates int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks, f.updates
}

var (
	_ StatsProvider        = (*fakeStatsProvider)(nil)
	_ StorageHealthChecker = (*fakeHealthChecker)(nil)
)

func writeFileOfSize(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestNewCollector(t *testing.T) {
	provider := &fakeStatsProvider{}
	c := NewCollector(provider, "/tmp/index.db", 30*time.Second)

	if c.statsProvider != provider || c.dbPath != "/tmp/index.db" || c.interval != 30*time.Second {
		t.Errorf("collector fields not set: %+v", c)
	}
	if c.stopChan == nil {
		t.Error("stopChan not initialized")
	}
}

func TestCollectToleratesMissingDependencies(t *testing.T) {
	// No provider, no db path, no poster dir, no health checker.
	c := NewCollector(nil, "", time.Minute)
	c.collect()

	// A provider error is logged, not propagated.
	failing := &fakeStatsProvider{err: errors.New("index unavailable")}
	c = NewCollector(failing, "", time.Minute)
	c.collect()

	if failing.callCount() != 1 {
		t.Errorf("GetStats called %d times, want 1", failing.callCount())
	}
}

func TestCollectLibraryStatsUpdatesGauges(t *testing.T) {
	provider := &fakeStatsProvider{stats: Stats{
		TotalArtifacts:       25,
		TotalBytes:           100 << 20,
		TotalSourceBytes:     180 << 20,
		TotalDurationSeconds: 3725.5,
	}}

	c := NewCollector(provider, "", time.Minute)
	c.collectLibraryStats()

	if got := testutil.ToFloat64(ArtifactsTotal); got != 25 {
		t.Errorf("ArtifactsTotal = %v, want 25", got)
	}
	if got := testutil.ToFloat64(ArtifactBytesTotal); got != float64(100<<20) {
		t.Errorf("ArtifactBytesTotal = %v, want %v", got, float64(100<<20))
	}
	if got := testutil.ToFloat64(SourceBytesTotal); got != float64(180<<20) {
		t.Errorf("SourceBytesTotal = %v, want %v", got, float64(180<<20))
	}
	if got := testutil.ToFloat64(ArtifactSecondsTotal); got != 3725.5 {
		t.Errorf("ArtifactSecondsTotal = %v, want 3725.5", got)
	}
}

func TestCollectDBSizeReportsSidecarSizes(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	sizes := map[string]int{"main": 8192, "wal": 2048, "shm": 1024}
	suffix := map[string]string{"main": "", "wal": "-wal", "shm": "-shm"}

	for label, size := range sizes {
		writeFileOfSize(t, dbPath+suffix[label], size)
	}

	c := NewCollector(nil, dbPath, time.Minute)
	c.collectDBSize()

	for label, size := range sizes {
		if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues(label)); got != float64(size) {
			t.Errorf("DBSizeBytes[%s] = %v, want %d", label, got, size)
		}
	}
}

func TestCollectDBSizeSkipsMissingFiles(t *testing.T) {
	// Missing files and an unset path are skipped without error
	NewCollector(nil, "/nonexistent/index.db", time.Minute).collectDBSize()
	NewCollector(nil, "", time.Minute).collectDBSize()
}

func TestCollectPosterCacheSize(t *testing.T) {
	dir := t.TempDir()
	writeFileOfSize(t, filepath.Join(dir, "a.jpg"), 100)
	writeFileOfSize(t, filepath.Join(dir, "b.jpg"), 200)

	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFileOfSize(t, filepath.Join(sub, "c.jpg"), 300)

	c := NewCollector(nil, "", time.Minute)
	c.SetPosterCacheDir(dir)
	c.collectPosterCacheSize()

	if got := testutil.ToFloat64(PosterCacheSize); got != 600 {
		t.Errorf("PosterCacheSize = %v, want 600", got)
	}
	if got := testutil.ToFloat64(PosterCacheCount); got != 3 {
		t.Errorf("PosterCacheCount = %v, want 3", got)
	}
}

func TestCollectPosterCacheSizeMissingDirReportsZero(t *testing.T) {
	PosterCacheSize.Set(999)
	PosterCacheCount.Set(999)

	c := NewCollector(nil, "", time.Minute)
	c.SetPosterCacheDir("/nonexistent/poster/cache")
	c.collectPosterCacheSize()

	if got := testutil.ToFloat64(PosterCacheSize); got != 0 {
		t.Errorf("PosterCacheSize = %v, want 0", got)
	}
	if got := testutil.ToFloat64(PosterCacheCount); got != 0 {
		t.Errorf("PosterCacheCount = %v, want 0", got)
	}
}

func TestCollectPosterCacheSizeUnset(t *testing.T) {
	PosterCacheSize.Set(7)

	// No cache dir configured leaves the gauges untouched
	NewCollector(nil, "", time.Minute).collectPosterCacheSize()

	if got := testutil.ToFloat64(PosterCacheSize); got != 7 {
		t.Errorf("PosterCacheSize = %v, want 7 (unchanged)", got)
	}
}

func TestCollectMemoryMetrics(t *testing.T) {
	GoMemAllocBytes.Set(0)
	GoMemSysBytes.Set(0)

	NewCollector(nil, "", time.Minute).collectMemoryMetrics()

	if got := testutil.ToFloat64(GoMemAllocBytes); got <= 0 {
		t.Errorf("GoMemAllocBytes = %v, want > 0 after collection", got)
	}
	if got := testutil.ToFloat64(GoMemSysBytes); got <= 0 {
		t.Errorf("GoMemSysBytes = %v, want > 0 after collection", got)
	}
}

func TestCollectDrivesHealthChecker(t *testing.T) {
	checker := &fakeHealthChecker{}

	c := NewCollector(&fakeStatsProvider{}, "", time.Minute)
	c.SetStorageHealthChecker(checker)
	c.collect()

	checks, updates := checker.counts()
	if checks != 1 || updates != 1 {
		t.Errorf("health checker calls = %d/%d, want 1/1", checks, updates)
	}
}

func TestDirStats(t *testing.T) {
	t.Run("nested files", func(t *testing.T) {
		dir := t.TempDir()
		writeFileOfSize(t, filepath.Join(dir, "one.bin"), 150)
		writeFileOfSize(t, filepath.Join(dir, "two.bin"), 250)

		nested := filepath.Join(dir, "nested")
		if err := os.Mkdir(nested, 0o755); err != nil {
			t.Fatal(err)
		}
		writeFileOfSize(t, filepath.Join(nested, "three.bin"), 600)

		size, count, err := dirStats(dir)
		if err != nil {
			t.Fatalf("dirStats() error = %v", err)
		}
		if size != 1000 || count != 3 {
			t.Errorf("dirStats() = (%d, %d), want (1000, 3)", size, count)
		}
	})

	t.Run("empty dir", func(t *testing.T) {
		size, count, err := dirStats(t.TempDir())
		if err != nil || size != 0 || count != 0 {
			t.Errorf("dirStats() = (%d, %d, %v), want (0, 0, nil)", size, count, err)
		}
	})

	t.Run("missing dir", func(t *testing.T) {
		if _, _, err := dirStats("/nonexistent/directory/path"); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

func TestCollectorLoop(t *testing.T) {
	provider := &fakeStatsProvider{stats: Stats{TotalArtifacts: 5}}
	checker := &fakeHealthChecker{}

	c := NewCollector(provider, "", 50*time.Millisecond)
	c.SetStorageHealthChecker(checker)

	c.Start()

	// Immediate collect plus at least two ticker cycles
	time.Sleep(175 * time.Millisecond)

	if got := provider.callCount(); got < 3 {
		t.Errorf("GetStats called %d times, want at least 3", got)
	}
	if checks, _ := checker.counts(); checks < 3 {
		t.Errorf("CheckStorageHealth called %d times, want at least 3", checks)
	}

	c.Stop()
	time.Sleep(60 * time.Millisecond)
	after := provider.callCount()

	time.Sleep(120 * time.Millisecond)
	if got := provider.callCount(); got != after {
		t.Errorf("collections continued after Stop(): %d -> %d", after, got)
	}
}

func TestCollectFull(t *testing.T) {
	base := t.TempDir()
	dbPath := filepath.Join(base, "index.db")
	posterDir := filepath.Join(base, "posters")

	writeFileOfSize(t, dbPath, 2048)
	if err := os.Mkdir(posterDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFileOfSize(t, filepath.Join(posterDir, "p.jpg"), 512)

	provider := &fakeStatsProvider{stats: Stats{
		TotalArtifacts:       10,
		TotalBytes:           4096,
		TotalSourceBytes:     8192,
		TotalDurationSeconds: 120.0,
	}}
	checker := &fakeHealthChecker{}

	c := NewCollector(provider, dbPath, time.Minute)
	c.SetStorageHealthChecker(checker)
	c.SetPosterCacheDir(posterDir)

	c.collect()

	if provider.callCount() != 1 {
		t.Errorf("GetStats called %d times, want 1", provider.callCount())
	}
	checks, updates := checker.counts()
	if checks != 1 || updates != 1 {
		t.Errorf("health checker calls = %d/%d, want 1/1", checks, updates)
	}
	if got := testutil.ToFloat64(ArtifactsTotal); got != 10 {
		t.Errorf("ArtifactsTotal = %v, want 10", got)
	}
	if got := testutil.ToFloat64(DBSizeBytes.WithLabelValues("main")); got != 2048 {
		t.Errorf("DBSizeBytes[main] = %v, want 2048", got)
	}
	if got := testutil.ToFloat64(PosterCacheSize); got != 512 {
		t.Errorf("PosterCacheSize = %v, want 512", got)
	}
}

func BenchmarkDirStats(b *testing.B) {
	dir := b.TempDir()
	for i := 0; i < 20; i++ {
		name := filepath.Join(dir, "file"+string(rune('a'+i))+".bin")
		if err := os.WriteFile(name, make([]byte, 1024), 0o644); err != nil {
			b.Fatalf("Failed to create file: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := dirStats(dir); err != nil {
			b.Fatalf("dirStats() error = %v", err)
		}
	}
}
