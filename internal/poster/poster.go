package poster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"video-ingest/internal/filesystem"
	"video-ingest/internal/logging"
	"video-ingest/internal/memory"
	"video-ingest/internal/metrics"
	"video-ingest/internal/store"
)

// Size is the bounding box for poster frames in pixels. Frames are
// shrunk to fit within Size x Size with aspect ratio preserved.
const Size = 320

// jpegQuality is the encode quality for cached posters.
const jpegQuality = 80

// extractTimeout bounds a single poster generation, spool included.
const extractTimeout = 30 * time.Second

// stderrTailBytes is how much trailing ffmpeg stderr is kept for logging.
const stderrTailBytes = 400

// ErrDisabled is returned when poster generation is turned off.
var ErrDisabled = errors.New("poster generation is disabled")

// Generator produces JPEG poster frames from stored artifacts and
// caches them on disk keyed by artifact id.
type Generator struct {
	store    store.Store
	cacheDir string
	spoolDir string
	monitor  *memory.Monitor
	enabled  bool
	bin      string

	// mu serializes frame extraction and decode so only one ffmpeg
	// process and one decoded frame are live at a time
	mu sync.Mutex
}

// New creates a poster generator. cacheDir must exist and be writable
// when enabled is true. An empty spoolDir falls back to the system
// temp directory. monitor may be nil, which disables memory gating.
func New(st store.Store, cacheDir, spoolDir string, monitor *memory.Monitor, enabled bool) *Generator {
	return &Generator{
		store:    st,
		cacheDir: cacheDir,
		spoolDir: spoolDir,
		monitor:  monitor,
		enabled:  enabled,
		bin:      "ffmpeg",
	}
}

// Poster returns the JPEG poster bytes for an artifact, generating and
// caching them on first request. Unknown ids yield store.ErrNotFound.
func (g *Generator) Poster(ctx context.Context, id string) ([]byte, error) {
	if !g.enabled {
		return nil, ErrDisabled
	}
	if !store.ValidID(id) {
		return nil, store.ErrNotFound
	}

	cachePath := filepath.Join(g.cacheDir, id+".jpg")

	start := time.Now()
	data, err := os.ReadFile(cachePath)
	filesystem.TrackOperation(cachePath, "read", start, err)
	if err == nil {
		metrics.PosterCacheHits.Inc()
		logging.Debug("Poster cache hit: %s", id)
		return data, nil
	}
	metrics.PosterCacheMisses.Inc()

	g.mu.Lock()
	defer g.mu.Unlock()

	// another request may have generated it while we waited
	if data, err := os.ReadFile(cachePath); err == nil {
		return data, nil
	}

	start = time.Now()
	data, err = g.generate(ctx, id)
	metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		status := "error"
		if errors.Is(err, store.ErrNotFound) {
			status = "error_not_found"
		}
		metrics.PosterGenerationsTotal.WithLabelValues(status).Inc()
		return nil, err
	}
	metrics.PosterGenerationsTotal.WithLabelValues("success").Inc()

	g.writeCache(cachePath, id, data)
	return data, nil
}

// writeCache persists generated poster bytes. Failures are logged and
// swallowed so a read-only cache degrades to regeneration per request.
func (g *Generator) writeCache(cachePath, id string, data []byte) {
	if g.monitor != nil && g.monitor.ShouldThrottle() {
		logging.Debug("Skipping poster cache write under memory pressure: %s", id)
		return
	}

	start := time.Now()
	err := os.WriteFile(cachePath, data, 0o600)
	filesystem.TrackOperation(cachePath, "write", start, err)
	if err != nil {
		logging.Warn("Failed to cache poster for %s: %v", id, err)
	}
}

func (g *Generator) generate(ctx context.Context, id string) ([]byte, error) {
	if g.monitor != nil && !g.monitor.WaitIfPaused() {
		return nil, errors.New("poster generation aborted during shutdown")
	}

	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	src, cleanup, err := g.spool(ctx, id)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	frame, err := g.extractFrame(ctx, src)
	if err != nil {
		return nil, err
	}

	return renderJPEG(frame, Size)
}

// spool copies the artifact to a local file so ffmpeg can seek it.
// Store backends are not required to expose filesystem paths.
func (g *Generator) spool(ctx context.Context, id string) (string, func(), error) {
	rc, _, err := g.store.Open(ctx, id)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(g.spoolDir, "poster-*.mp4")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create poster spool file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			logging.Warn("Failed to remove poster spool file %s: %v", tmp.Name(), err)
		}
	}

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to spool artifact %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to spool artifact %s: %w", id, err)
	}

	return tmp.Name(), cleanup, nil
}

// FrameArgs returns the ffmpeg argument list for grabbing a single
// frame as PNG on stdout. seek selects the one-second mark; extraction
// retries without it for clips shorter than a second.
func FrameArgs(src string, seek bool) []string {
	args := []string{"-i", src}
	if seek {
		args = append(args, "-ss", "00:00:01")
	}
	return append(args,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func (g *Generator) extractFrame(ctx context.Context, src string) ([]byte, error) {
	// a seek past the end of a short clip can exit zero with empty
	// output, so both failure modes fall back to the first frame
	frame, err := g.grab(ctx, src, true)
	if err == nil && len(frame) > 0 {
		return frame, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		logging.Debug("Frame grab at 1s failed for %s: %v, retrying from first frame", src, err)
	} else {
		logging.Debug("Frame grab at 1s produced no output for %s, retrying from first frame", src)
	}

	frame, err = g.grab(ctx, src, false)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame for %s", src)
	}
	return frame, nil
}

func (g *Generator) grab(ctx context.Context, src string, seek bool) ([]byte, error) {
	cmd := exec.CommandContext(ctx, g.bin, FrameArgs(src, seek)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab failed: %v (stderr: %s)", err, stderrTail(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// renderJPEG shrinks an encoded frame to fit within size pixels and
// returns JPEG bytes. When libvips is initialized the decode and
// shrink happen natively with bounded memory; otherwise the pure-Go
// path decodes the full frame before resizing.
func renderJPEG(frame []byte, size int) ([]byte, error) {
	if IsVipsAvailable() {
		data, err := thumbnailJPEG(frame, size)
		if err == nil {
			return data, nil
		}
		logging.Debug("vips poster render failed, falling back to pure-Go path: %v", err)
	}

	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode poster frame: %w", err)
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode poster: %w", err)
	}
	return buf.Bytes(), nil
}

// stderrTail returns the last stderrTailBytes of output, trimmed.
func stderrTail(b []byte) string {
	if len(b) > stderrTailBytes {
		b = b[len(b)-stderrTailBytes:]
	}
	return string(bytes.TrimSpace(b))
}
