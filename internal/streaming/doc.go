/*
Package streaming bounds how long an HTTP response body write may take.

# Overview

The server keeps http.Server.WriteTimeout at zero so multi-gigabyte
artifact downloads are never cut off mid-transfer. That moves the
responsibility for stalled clients here: TimeoutWriter wraps the
response writer and aborts the stream when a single write stalls, when
no write succeeds within an idle window, or when the whole transfer
exceeds an absolute cap.

Each limit is independent and a zero value disables it:

  - WriteTimeout bounds one write to the client socket
  - IdleTimeout bounds the gap between successful writes
  - MaxDuration bounds the stream end to end
  - ChunkSize splits large buffers so a stall is noticed mid-buffer

# Usage

Handlers that copy a stored artifact to the response use Stream:

	rc, info, err := h.store.Open(r.Context(), id)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	err = streaming.Stream(r.Context(), w, rc, streaming.DefaultConfig())
	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("Download aborted: %v", err)
	}

Callers that need progress reporting or custom limits build the writer
directly:

	config := streaming.DefaultConfig()
	config.ChunkSize = 128 * 1024
	config.OnProgress = func(bytes int64, duration time.Duration) {
		logging.Debug("Sent %d bytes in %v", bytes, duration)
	}

	tw := streaming.NewTimeoutWriter(r.Context(), w, config)
	defer tw.Close()

	_, err := io.Copy(tw, source)

# Errors

The sentinel errors separate conditions worth logging from routine
client behavior. ErrClientGone means the request context was canceled,
which is how browsers abandon downloads; handlers normally ignore it.
ErrWriteTimeout and ErrStreamCanceled indicate the server gave up on
the connection and are worth a warning. Check them with errors.Is.

# Concurrency

TimeoutWriter serializes writes to the underlying ResponseWriter, so
concurrent callers are safe. Each writer owns at most one idle watchdog
timer; Close releases it and is idempotent.
*/
package streaming
