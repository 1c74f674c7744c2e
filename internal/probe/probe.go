package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"video-ingest/internal/logging"
	"video-ingest/internal/metrics"
)

// DefaultTimeout bounds a single ffprobe invocation.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnsupportedFormat indicates a readable container with no video stream.
	ErrUnsupportedFormat = errors.New("no video stream found")

	// ErrCorruptStream indicates input ffprobe could not read or report on.
	ErrCorruptStream = errors.New("could not read video stream")
)

// Prober extracts metadata from video files via ffprobe.
type Prober struct {
	timeout time.Duration
	bin     string
}

// New creates a Prober. A non-positive timeout selects DefaultTimeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		timeout: timeout,
		bin:     "ffprobe",
	}
}

// Probe runs ffprobe against path and returns the extracted metadata.
// Errors wrap ErrCorruptStream or ErrUnsupportedFormat for classification.
func (p *Prober) Probe(ctx context.Context, path string) (Metadata, error) {
	start := time.Now()
	meta, err := p.run(ctx, path)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ProbeOperationsTotal.WithLabelValues(status).Inc()
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	return meta, err
}

func (p *Prober) run(ctx context.Context, path string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			logging.Warn("Probe timed out after %v for %s", p.timeout, path)
			return Metadata{}, fmt.Errorf("%w: ffprobe timed out after %v", ErrCorruptStream, p.timeout)
		}
		logging.Debug("Probe failed for %s: %v (stderr: %s)", path, err, stderr.String())
		return Metadata{}, fmt.Errorf("%w: ffprobe: %v", ErrCorruptStream, err)
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		logging.Debug("Probe produced unparseable output for %s: %v", path, err)
		return Metadata{}, fmt.Errorf("%w: decoding ffprobe output: %v", ErrCorruptStream, err)
	}

	meta, err := extractMetadata(out)
	if err != nil {
		return Metadata{}, err
	}

	logging.Debug("Probed %s: codec=%s %dx%d duration=%.3fs fps=%.3f",
		path, meta.Codec, meta.Width, meta.Height, meta.DurationSeconds, meta.FrameRate)
	return meta, nil
}
