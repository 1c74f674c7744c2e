package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"video-ingest/internal/logging"
	"video-ingest/internal/metrics"
	"video-ingest/internal/workers"
)

// DefaultTimeout bounds a single ffmpeg run.
const DefaultTimeout = 2 * time.Minute

// stderrTailBytes is how much trailing ffmpeg stderr is kept for
// classification and logging.
const stderrTailBytes = 400

var (
	// ErrUnsupportedCodec indicates ffmpeg has no decoder for the source stream.
	ErrUnsupportedCodec = errors.New("source codec cannot be decoded")

	// ErrEncodeFailure indicates the encode step failed.
	ErrEncodeFailure = errors.New("video could not be converted")

	// ErrTimeout indicates the encode exceeded the configured deadline.
	ErrTimeout = errors.New("transcode timed out")
)

// Encoder produces the fixed-profile rendition of src at dst.
// Implementations must not leave a usable file at dst on error.
type Encoder interface {
	Encode(ctx context.Context, src, dst string) error
}

// FFmpeg is the production Encoder backed by an ffmpeg subprocess.
type FFmpeg struct {
	timeout time.Duration
	bin     string

	// gate bounds concurrent ffmpeg processes
	gate chan struct{}

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// New creates an FFmpeg encoder. A non-positive timeout selects
// DefaultTimeout; a non-positive maxConcurrent sizes the gate from the
// available CPUs.
func New(timeout time.Duration, maxConcurrent int) *FFmpeg {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxConcurrent <= 0 {
		maxConcurrent = workers.ForCPU(0)
	}

	return &FFmpeg{
		timeout:   timeout,
		bin:       "ffmpeg",
		gate:      make(chan struct{}, maxConcurrent),
		processes: make(map[string]*exec.Cmd),
	}
}

// EncodeArgs returns the pinned ffmpeg argument list for the grayscale
// H.264 profile. Single-threaded x264 removes thread-scheduling
// nondeterminism from the output.
func EncodeArgs(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-vf", "format=gray",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-threads", "1",
		dst,
	}
}

// Encode transcodes src to dst under the fixed profile. The call blocks
// until a gate slot is free; ctx cancellation while waiting returns
// without ever starting ffmpeg.
func (f *FFmpeg) Encode(ctx context.Context, src, dst string) error {
	gateStart := time.Now()
	select {
	case f.gate <- struct{}{}:
		metrics.TranscoderGateWait.Observe(time.Since(gateStart).Seconds())
	case <-ctx.Done():
		metrics.TranscoderJobsTotal.WithLabelValues("canceled").Inc()
		return ctx.Err()
	}
	defer func() { <-f.gate }()

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	start := time.Now()
	err := f.run(ctx, src, dst)
	metrics.TranscoderJobDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.TranscoderJobsTotal.WithLabelValues("success").Inc()
	case errors.Is(err, ErrTimeout):
		metrics.TranscoderJobsTotal.WithLabelValues("timeout").Inc()
	case errors.Is(err, context.Canceled):
		metrics.TranscoderJobsTotal.WithLabelValues("canceled").Inc()
	default:
		metrics.TranscoderJobsTotal.WithLabelValues("error").Inc()
	}

	return err
}

func (f *FFmpeg) run(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.bin, EncodeArgs(src, dst)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.processMu.Lock()
	f.processes[src] = cmd
	f.processMu.Unlock()

	defer func() {
		f.processMu.Lock()
		delete(f.processes, src)
		f.processMu.Unlock()
	}()

	logging.Debug("Transcoding %s -> %s", src, dst)

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logging.Warn("Transcode timed out after %v for %s", f.timeout, src)
			return fmt.Errorf("%w after %v", ErrTimeout, f.timeout)
		}
		if ctx.Err() == context.Canceled {
			logging.Debug("Transcode canceled for %s", src)
			return ctx.Err()
		}

		tail := stderrTail(stderr.Bytes())
		logging.Error("FFmpeg failed for %s: %v (stderr: %s)", src, err, tail)
		return classify(tail)
	}

	return nil
}

// classify maps an ffmpeg stderr tail to an error kind. Stderr text is
// logged by the caller, never surfaced to clients.
func classify(tail string) error {
	lower := strings.ToLower(tail)
	if strings.Contains(lower, "decoder") &&
		(strings.Contains(lower, "not found") || strings.Contains(lower, "unknown")) {
		return fmt.Errorf("%w: no decoder for source stream", ErrUnsupportedCodec)
	}
	return fmt.Errorf("%w: ffmpeg exited with errors", ErrEncodeFailure)
}

// stderrTail returns the last stderrTailBytes of output, trimmed.
func stderrTail(b []byte) string {
	if len(b) > stderrTailBytes {
		b = b[len(b)-stderrTailBytes:]
	}
	return strings.TrimSpace(string(b))
}

// Shutdown kills all live ffmpeg processes. In-flight Encode calls
// return an error once their process dies.
func (f *FFmpeg) Shutdown() {
	f.processMu.Lock()
	defer f.processMu.Unlock()

	for src, cmd := range f.processes {
		if cmd.Process != nil {
			logging.Info("Killing transcode process for: %s", src)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill transcode process for %s: %v", src, err)
			}
		}
	}
}
