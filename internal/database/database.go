package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"video-ingest/internal/logging"
	"video-ingest/internal/metrics"
	"video-ingest/internal/workers"
)

// defaultTimeout bounds individual index operations.
const defaultTimeout = 5 * time.Second

// connOptions tunes the SQLite connection: WAL keeps readers live while
// ingest writes land, busy_timeout rides out checkpoint locks.
const connOptions = "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000"

// Database is the artifact index: one row per stored rendition, so metadata
// lookups and stats never have to touch the artifact payloads themselves.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if necessary) the artifact index at dbPath. The path
// names the database file itself, and its parent directory must already
// exist and be writable; startup.LoadConfig prepares both.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Artifact index path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	db, err := sql.Open("sqlite3", dbPath+connOptions)
	if err != nil {
		return nil, fmt.Errorf("open artifact index: %w", err)
	}
	d := &Database{db: db, dbPath: dbPath}

	if err := d.ping(ctx); err != nil {
		d.closeQuietly("ping failure")
		return nil, fmt.Errorf("connect to artifact index: %w", err)
	}

	// Metadata reads dominate once artifacts exist; writes are one row per
	// completed ingest.
	d.db.SetMaxOpenConns(workers.ForIO(25))
	d.db.SetMaxIdleConns(10)
	d.db.SetConnMaxLifetime(time.Hour)

	if err := d.initialize(ctx); err != nil {
		d.closeQuietly("schema failure")
		return nil, fmt.Errorf("initialize artifact index schema: %w", err)
	}

	logging.Info("Artifact index initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(pingCtx)
}

// closeQuietly closes the handle after a failed startup step; the step's
// own error is the one worth returning.
func (d *Database) closeQuietly(step string) {
	if err := d.db.Close(); err != nil {
		logging.Error("closing artifact index after %s: %v", step, err)
	}
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Artifact index: one row per stored rendition
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		frame_rate REAL NOT NULL DEFAULT 0,
		size_bytes INTEGER NOT NULL DEFAULT 0,
		source_name TEXT,
		source_bytes INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_created_at ON artifacts(created_at);
	`

	_, err := d.db.ExecContext(ctx, schema)
	return err
}

// Close shuts down the connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// recordQuery feeds one index operation into the query metrics.
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// UpdateDBMetrics publishes the connection pool gauge.
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

// sidecars returns the index file and its WAL/SHM companions, labeled
// for metrics.
func (d *Database) sidecars() map[string]string {
	return map[string]string{
		"main": d.dbPath,
		"wal":  d.dbPath + "-wal",
		"shm":  d.dbPath + "-shm",
	}
}

// CheckStorageHealth verifies that the index files are still writable and
// records problems. WAL permissions can change underneath us when the volume
// is remounted.
func (d *Database) CheckStorageHealth() {
	for label, path := range d.sidecars() {
		info, err := os.Stat(path)
		if err != nil {
			continue // WAL/SHM may legitimately not exist yet
		}
		if !writable(info) {
			metrics.DBStorageErrors.WithLabelValues(label).Inc()
			logging.Warn("Database %s file is read-only: %s (mode: %v)", label, path, info.Mode())
		}
	}
}

func writable(info os.FileInfo) bool {
	return info.Mode().Perm()&0o200 != 0
}

// diagnosePermissions probes the index directory and files before the
// driver touches them, so a remounted read-only volume shows up as a
// clear log line instead of an opaque SQLITE_READONLY later.
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat index directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	probe := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("index directory not writable: %w", err)
	}
	_ = os.Remove(probe)

	// The main file is left alone; a read-only WAL or SHM gets chmodded
	// back since SQLite cannot write through it at all.
	checkIndexFile("database", dbPath, false)
	checkIndexFile("WAL", dbPath+"-wal", true)
	checkIndexFile("SHM", dbPath+"-shm", true)

	return nil
}

// checkIndexFile logs the state of one index file and optionally restores
// write permission when it has been lost. Missing files are skipped.
func checkIndexFile(label, path string, fix bool) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	logging.Debug("%s file exists: %s (mode: %v, size: %d bytes)", label, path, info.Mode(), info.Size())
	if writable(info) {
		return
	}

	logging.Warn("%s file is read-only (mode: %v), writes will fail", label, info.Mode())
	if !fix {
		return
	}

	if err := os.Chmod(path, 0o600); err != nil {
		logging.Error("Failed to fix %s file permissions: %v", label, err)
		return
	}
	logging.Info("Fixed %s file permissions", label)
}
