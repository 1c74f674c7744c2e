package streaming

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"video-ingest/internal/logging"
)

var (
	// ErrWriteTimeout means a single write or the whole stream exceeded its
	// configured time limit, usually because the client reads too slowly.
	ErrWriteTimeout = errors.New("client write timed out")

	// ErrClientGone means the client disconnected before the stream
	// completed, detected via request context cancellation.
	ErrClientGone = errors.New("client closed the connection")

	// ErrStreamCanceled means the stream was torn down on the server side,
	// by Close or by a parent deadline.
	ErrStreamCanceled = errors.New("response stream canceled")
)

// Config controls timeout behavior for a single streamed response.
type Config struct {
	// WriteTimeout bounds each individual write (0 = unlimited)
	WriteTimeout time.Duration
	// IdleTimeout bounds the gap between successful writes (0 = unlimited)
	IdleTimeout time.Duration
	// MaxDuration bounds the whole stream (0 = unlimited)
	MaxDuration time.Duration
	// ChunkSize splits large writes so stalls are detected mid-buffer
	// (0 = write as received)
	ChunkSize int
	// ProgressEvery is the number of bytes between OnProgress calls
	// (0 = every MiB)
	ProgressEvery int64
	// OnProgress is called with the running byte total and elapsed time
	OnProgress func(bytesWritten int64, duration time.Duration)
}

// DefaultConfig returns sensible defaults for artifact downloads.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   60 * time.Second,
		MaxDuration:   0,         // Unlimited by default
		ChunkSize:     64 * 1024, // 64KB chunks
		ProgressEvery: 0,
		OnProgress:    nil,
	}
}

// writeOutcome carries the result of one underlying write across the
// timeout select.
type writeOutcome struct {
	n   int
	err error
}

// TimeoutWriter wraps an http.ResponseWriter so a stalled client cannot
// hold a handler goroutine forever.
type TimeoutWriter struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	ctx      context.Context
	cancel   context.CancelFunc
	config   Config
	started  time.Time
	deadline time.Time
	idle     *time.Timer

	// writeMu serializes access to the underlying ResponseWriter.
	writeMu sync.Mutex

	mu           sync.Mutex
	closed       bool
	bytesWritten int64
	nextProgress int64
}

// NewTimeoutWriter creates a timeout-protected writer around w. Callers
// must Close it to release the idle watchdog.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config Config) *TimeoutWriter {
	writerCtx, cancel := context.WithCancel(ctx)

	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 1 << 20
	}

	tw := &TimeoutWriter{
		w:            w,
		ctx:          writerCtx,
		cancel:       cancel,
		config:       config,
		started:      time.Now(),
		nextProgress: config.ProgressEvery,
	}
	tw.flusher, _ = w.(http.Flusher)

	if config.MaxDuration > 0 {
		tw.deadline = tw.started.Add(config.MaxDuration)
	}
	if config.IdleTimeout > 0 {
		tw.idle = time.AfterFunc(config.IdleTimeout, tw.idleExpired)
	}

	return tw
}

// Write implements io.Writer. Large buffers are split into ChunkSize
// pieces so each piece is individually bounded by WriteTimeout.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	total := 0

	for len(p) > 0 {
		chunk := p
		if tw.config.ChunkSize > 0 && len(chunk) > tw.config.ChunkSize {
			chunk = chunk[:tw.config.ChunkSize]
		}

		n, err := tw.writeOne(chunk)
		total += n
		if err != nil {
			return total, err
		}

		p = p[len(chunk):]
		if len(p) > 0 && tw.flusher != nil {
			// Push the completed chunk to the client before writing the rest
			tw.flusher.Flush()
		}
	}

	return total, nil
}

// writeOne performs a single bounded write.
func (tw *TimeoutWriter) writeOne(p []byte) (int, error) {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return 0, ErrStreamCanceled
	}
	if tw.ctx.Err() != nil {
		return 0, tw.abortError()
	}
	if !tw.deadline.IsZero() && time.Now().After(tw.deadline) {
		return 0, ErrWriteTimeout
	}

	// The underlying Write carries no deadline of its own, so it runs in a
	// goroutine and the select below abandons it on timeout. outcome is
	// buffered so an abandoned write can still finish and exit.
	outcome := make(chan writeOutcome, 1)
	go func() {
		tw.writeMu.Lock()
		n, err := tw.w.Write(p)
		tw.writeMu.Unlock()
		outcome <- writeOutcome{n, err}
	}()

	var timeoutC <-chan time.Time
	if tw.config.WriteTimeout > 0 {
		timer := time.NewTimer(tw.config.WriteTimeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case res := <-outcome:
		if res.err == nil {
			tw.recordWrite(res.n)
		}
		return res.n, res.err

	case <-timeoutC:
		tw.cancel()
		return 0, ErrWriteTimeout

	case <-tw.ctx.Done():
		return 0, tw.abortError()
	}
}

// recordWrite updates byte accounting, feeds the idle watchdog, and fires
// the progress callback when a threshold is crossed.
func (tw *TimeoutWriter) recordWrite(n int) {
	if tw.idle != nil {
		tw.idle.Reset(tw.config.IdleTimeout)
	}

	tw.mu.Lock()
	tw.bytesWritten += int64(n)
	written := tw.bytesWritten
	due := written >= tw.nextProgress
	if due {
		tw.nextProgress += tw.config.ProgressEvery
	}
	tw.mu.Unlock()

	if due && tw.config.OnProgress != nil {
		tw.config.OnProgress(written, time.Since(tw.started))
	}
}

// idleExpired aborts the stream when no write succeeded within IdleTimeout.
func (tw *TimeoutWriter) idleExpired() {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return
	}

	logging.Warn("Stream idle for %v, aborting", tw.config.IdleTimeout)
	tw.cancel()
}

// abortError distinguishes a client that went away from a stream the
// server tore down itself.
func (tw *TimeoutWriter) abortError() error {
	if errors.Is(tw.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close stops the idle watchdog and cancels any in-flight write. It is
// safe to call more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return nil
	}
	tw.closed = true
	tw.mu.Unlock()

	if tw.idle != nil {
		tw.idle.Stop()
	}
	tw.cancel()

	return nil
}

// Stats returns the bytes written so far and the elapsed stream time.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.started)
}

// Stream copies a stored artifact to an HTTP response with timeout
// protection. The caller is responsible for setting Content-Type and
// Content-Length headers before the first write.
func Stream(ctx context.Context, w http.ResponseWriter, r io.Reader, config Config) error {
	tw := NewTimeoutWriter(ctx, w, config)
	defer tw.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")

	_, err := io.Copy(tw, r)

	written, took := tw.Stats()
	logging.Debug("Streamed %d bytes in %v", written, took)

	return err
}
