package store

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"

	"video-ingest/internal/metrics"
)

// ErrNotFound is returned when an id does not name a stored artifact,
// including ids that are syntactically invalid.
var ErrNotFound = errors.New("artifact not found")

// Info describes a stored artifact's binary.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Stats aggregates the store's contents.
type Stats struct {
	Artifacts  int64 `json:"artifacts"`
	TotalBytes int64 `json:"totalBytes"`
}

// Store persists transcoded artifacts and serves them back by id.
// Implementations must publish atomically: an artifact is either fully
// readable under its id or absent, never partial.
type Store interface {
	// Put streams r to durable storage and returns the new artifact's id
	// and size in bytes. The id is generated internally and never reused.
	Put(ctx context.Context, r io.Reader) (id string, size int64, err error)

	// Open returns a seekable reader over the artifact's bytes. The
	// caller must close it. Unknown and malformed ids yield ErrNotFound.
	Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error)

	// Stat reports size and modification time without opening the data.
	Stat(ctx context.Context, id string) (Info, error)

	// Stats reports the artifact count and total stored bytes.
	Stats(ctx context.Context) (Stats, error)
}

// NewID returns a fresh 32-character lowercase hex artifact id.
func NewID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// ValidID reports whether id has the exact shape NewID produces. It is
// checked before any backend access so malformed ids cannot reach the
// filesystem or the network.
func ValidID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// recordOp feeds the per-backend operation counters and latency
// histograms. NotFound counts as an error so lookup misses stay visible.
func recordOp(backend, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StoreOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	metrics.StoreOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
