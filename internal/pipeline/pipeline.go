package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"video-ingest/internal/database"
	"video-ingest/internal/logging"
	"video-ingest/internal/mediatypes"
	"video-ingest/internal/metrics"
	"video-ingest/internal/probe"
	"video-ingest/internal/store"
	"video-ingest/internal/transcode"
	"video-ingest/internal/validate"
)

// Prober extracts technical metadata from a spooled upload.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Metadata, error)
}

// Index records completed ingests for metadata lookups and stats. A nil
// index skips recording.
type Index interface {
	InsertArtifact(ctx context.Context, a *database.Artifact) error
}

// Result is the outcome of one completed ingest.
type Result struct {
	ID          string
	Metadata    probe.Metadata
	SourceBytes int64
	StoredBytes int64
}

// Pipeline wires the ingest stages together. Stages hold no
// cross-request state, so Process may be called from any number of
// goroutines.
type Pipeline struct {
	prober   Prober
	encoder  transcode.Encoder
	store    store.Store
	index    Index
	spoolDir string
}

// New assembles a pipeline. Per-request spool dirs are created under
// spoolDir; empty means the system temp dir. index may be nil.
func New(p Prober, enc transcode.Encoder, st store.Store, idx Index, spoolDir string) *Pipeline {
	return &Pipeline{prober: p, encoder: enc, store: st, index: idx, spoolDir: spoolDir}
}

// Process runs one upload through every stage and returns the stored
// artifact's id and metadata. Classified failures come back as *Error;
// a canceled request context comes back as the context's error.
func (p *Pipeline) Process(ctx context.Context, upload io.Reader, contentType, filename string) (Result, error) {
	metrics.PipelineJobsInFlight.Inc()
	defer metrics.PipelineJobsInFlight.Dec()

	j := newJob(filename)
	res, err := p.run(ctx, j, upload, contentType, filename)
	if err != nil {
		j.fail(err)
		metrics.PipelineJobsTotal.WithLabelValues("failed").Inc()
		var perr *Error
		if errors.As(err, &perr) {
			metrics.PipelineFailuresTotal.WithLabelValues(string(perr.Stage), string(perr.Kind)).Inc()
		}
		return Result{}, err
	}
	j.complete()
	metrics.PipelineJobsTotal.WithLabelValues("completed").Inc()
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, j *job, upload io.Reader, contentType, filename string) (Result, error) {
	j.advance(StateValidating)
	dir, src, size, err := p.intake(ctx, upload, contentType, filename)
	if dir != "" {
		defer os.RemoveAll(dir)
	}
	if err != nil {
		return Result{}, err
	}
	metrics.PipelineBytesInTotal.Add(float64(size))

	j.advance(StateExtracting)
	md, err := p.extract(ctx, src)
	if err != nil {
		return Result{}, err
	}

	j.advance(StateTranscoding)
	out := filepath.Join(dir, "out.mp4")
	if err := p.encode(ctx, src, out); err != nil {
		return Result{}, err
	}

	j.advance(StateStoring)
	res, err := p.persist(ctx, out, filename, md, size)
	if err != nil {
		return Result{}, err
	}
	logging.Info("Ingested %q -> %s (%dx%d, %.2fs, %d -> %d bytes)",
		j.name, res.ID, md.Width, md.Height, md.DurationSeconds, size, res.StoredBytes)
	return res, nil
}

// intake rejects unacceptable uploads and spools the rest to disk. The
// returned dir is non-empty whenever a spool dir was created, including
// on failure, so the caller can always clean up.
func (p *Pipeline) intake(ctx context.Context, upload io.Reader, contentType, filename string) (string, string, int64, error) {
	defer observeStage(StageValidate, time.Now())

	if err := validate.CheckType(contentType, filename); err != nil {
		return "", "", 0, fail(StageValidate, KindUnsupportedType, err)
	}

	dir, err := os.MkdirTemp(p.spoolDir, "ingest-")
	if err != nil {
		return "", "", 0, fail(StageValidate, KindStorage, fmt.Errorf("creating spool dir: %w", err))
	}

	// Only the extension of the client filename is reused, as a format
	// hint; the name itself never reaches the filesystem.
	src := filepath.Join(dir, "source"+mediatypes.Ext(filename))
	f, err := os.Create(src)
	if err != nil {
		return dir, "", 0, fail(StageValidate, KindStorage, fmt.Errorf("creating spool file: %w", err))
	}
	size, err := validate.CopyCapped(f, upload)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err == nil:
		return dir, src, size, nil
	case errors.Is(err, validate.ErrTooLarge):
		return dir, "", 0, fail(StageValidate, KindTooLarge, err)
	case ctx.Err() != nil:
		return dir, "", 0, ctx.Err()
	default:
		return dir, "", 0, fail(StageValidate, KindStorage, fmt.Errorf("spooling upload: %w", err))
	}
}

func (p *Pipeline) extract(ctx context.Context, src string) (probe.Metadata, error) {
	defer observeStage(StageProbe, time.Now())

	md, err := p.prober.Probe(ctx, src)
	switch {
	case err == nil:
		return md, nil
	case errors.Is(err, probe.ErrUnsupportedFormat):
		return probe.Metadata{}, fail(StageProbe, KindUnsupportedFormat, err)
	case ctx.Err() != nil:
		return probe.Metadata{}, ctx.Err()
	default:
		return probe.Metadata{}, fail(StageProbe, KindCorruptStream, err)
	}
}

func (p *Pipeline) encode(ctx context.Context, src, dst string) error {
	defer observeStage(StageTranscode, time.Now())

	err := p.encoder.Encode(ctx, src, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transcode.ErrTimeout):
		return fail(StageTranscode, KindTimeout, err)
	case errors.Is(err, transcode.ErrUnsupportedCodec):
		return fail(StageTranscode, KindUnsupportedCodec, err)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return fail(StageTranscode, KindEncodeFailure, err)
	}
}

// persist publishes the rendition and records it in the index. The ctx
// check comes first so a caller that disconnected during the transcode
// never leaves an orphaned artifact.
func (p *Pipeline) persist(ctx context.Context, out, filename string, md probe.Metadata, sourceBytes int64) (Result, error) {
	defer observeStage(StageStore, time.Now())

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	f, err := os.Open(out)
	if err != nil {
		return Result{}, fail(StageStore, KindStorage, fmt.Errorf("opening rendition: %w", err))
	}
	id, stored, err := p.store.Put(ctx, f)
	f.Close()
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fail(StageStore, KindStorage, fmt.Errorf("storing rendition: %w", err))
	}

	if p.index != nil {
		a := &database.Artifact{
			ID:              id,
			Width:           md.Width,
			Height:          md.Height,
			DurationSeconds: md.DurationSeconds,
			FrameRate:       md.FrameRate,
			SizeBytes:       stored,
			SourceName:      filename,
			SourceBytes:     sourceBytes,
		}
		if err := p.index.InsertArtifact(ctx, a); err != nil {
			// The binary is already stored; only the index row is
			// missing. /video/{id} still serves it.
			return Result{}, fail(StageStore, KindStorage, fmt.Errorf("indexing artifact %s: %w", id, err))
		}
	}

	metrics.PipelineBytesOutTotal.Add(float64(stored))
	return Result{ID: id, Metadata: md, SourceBytes: sourceBytes, StoredBytes: stored}, nil
}

func observeStage(stage Stage, start time.Time) {
	metrics.PipelineStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
