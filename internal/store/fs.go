package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-ingest/internal/filesystem"
	"video-ingest/internal/logging"
)

const artifactExt = ".mp4"

// FS stores artifacts as flat files in a single directory, typically an
// NFS mount. Reads go through the filesystem retry helpers so transient
// stale-handle errors are absorbed.
type FS struct {
	dir string
}

// NewFS creates the store directory if needed and verifies it is
// writable before the first upload has a chance to fail on it.
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	probe := filepath.Join(dir, ".write-check")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return nil, fmt.Errorf("store directory not writable: %w", err)
	}
	os.Remove(probe)
	return &FS{dir: dir}, nil
}

// Dir returns the directory artifacts are stored in.
func (s *FS) Dir() string {
	return s.dir
}

func (s *FS) path(id string) string {
	return filepath.Join(s.dir, id+artifactExt)
}

// Put streams r to <id>.mp4.partial, fsyncs, and renames into place so a
// reader can never observe a short artifact.
func (s *FS) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	start := time.Now()
	id := NewID()
	final := s.path(id)

	size, err := writeAtomic(final, r)
	recordOp("fs", "put", start, err)
	filesystem.TrackOperation(final, "write", start, err)
	if err != nil {
		return "", 0, fmt.Errorf("storing artifact %s: %w", id, err)
	}
	logging.Debug("Stored artifact %s (%d bytes)", id, size)
	return id, size, nil
}

// writeAtomic leaves either a complete file at final or nothing. The
// .partial temporary is removed on every failure path.
func writeAtomic(final string, r io.Reader) (int64, error) {
	partial := final + ".partial"
	f, err := os.OpenFile(partial, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(partial)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(partial)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return 0, err
	}
	if err := os.Rename(partial, final); err != nil {
		os.Remove(partial)
		return 0, err
	}
	return size, nil
}

// Open returns the artifact file itself; *os.File is seekable, so range
// requests serve straight from disk.
func (s *FS) Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error) {
	start := time.Now()
	if !ValidID(id) {
		recordOp("fs", "open", start, ErrNotFound)
		return nil, Info{}, ErrNotFound
	}
	path := s.path(id)
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	filesystem.TrackOperation(path, "read", start, err)
	if err != nil {
		recordOp("fs", "open", start, err)
		if os.IsNotExist(err) {
			return nil, Info{}, ErrNotFound
		}
		return nil, Info{}, fmt.Errorf("opening artifact %s: %w", id, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		recordOp("fs", "open", start, err)
		return nil, Info{}, fmt.Errorf("statting artifact %s: %w", id, err)
	}
	recordOp("fs", "open", start, nil)
	return f, Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Stat reports size and mtime without opening the artifact.
func (s *FS) Stat(ctx context.Context, id string) (Info, error) {
	start := time.Now()
	if !ValidID(id) {
		recordOp("fs", "stat", start, ErrNotFound)
		return Info{}, ErrNotFound
	}
	path := s.path(id)
	fi, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	filesystem.TrackOperation(path, "stat", start, err)
	if err != nil {
		recordOp("fs", "stat", start, err)
		if os.IsNotExist(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("statting artifact %s: %w", id, err)
	}
	recordOp("fs", "stat", start, nil)
	return Info{Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Stats scans the directory. In-flight .partial files are not counted.
func (s *FS) Stats(ctx context.Context) (Stats, error) {
	start := time.Now()
	entries, err := os.ReadDir(s.dir)
	filesystem.TrackOperation(s.dir, "readdir", start, err)
	if err != nil {
		return Stats{}, fmt.Errorf("reading store directory: %w", err)
	}
	var st Stats
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), artifactExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		st.Artifacts++
		st.TotalBytes += fi.Size()
	}
	return st, nil
}
