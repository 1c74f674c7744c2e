package filesystem

import "time"

// An Observer receives filesystem instrumentation events. The metrics
// package supplies the production implementation; keeping the interface
// on this side leaves the package free of a metrics import.
type Observer interface {
	// ObserveOperation reports one completed operation: the volume label
	// the path resolved to, the operation name ("stat", "read", "write",
	// "readdir"), the wall time it took, and its error if any.
	ObserveOperation(volume, operation string, durationSeconds float64, err error)

	// The retry family mirrors the stale handle retry loop. retryOp is
	// the retried call, "stat" or "open".
	ObserveRetryAttempt(retryOp, volume string)
	ObserveRetrySuccess(retryOp, volume string)
	ObserveRetryFailure(retryOp, volume string)
	ObserveRetryDuration(retryOp, volume string, durationSeconds float64)
	ObserveStaleError(retryOp, volume string)
}

// nopObserver swallows every event so call sites never nil-check.
type nopObserver struct{}

func (nopObserver) ObserveOperation(_, _ string, _ float64, _ error) {}
func (nopObserver) ObserveRetryAttempt(_, _ string)                  {}
func (nopObserver) ObserveRetrySuccess(_, _ string)                  {}
func (nopObserver) ObserveRetryFailure(_, _ string)                  {}
func (nopObserver) ObserveRetryDuration(_, _ string, _ float64)      {}
func (nopObserver) ObserveStaleError(_, _ string)                    {}

var defaultObserver Observer

// SetObserver installs the package-level observer. main wires the
// Prometheus-backed one once at startup; left unset, every observation
// is a no-op.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	if defaultObserver == nil {
		return nopObserver{}
	}
	return defaultObserver
}

// TrackOperation records one filesystem operation against the volume
// resolved from path. Capture start before the call and hand in its
// error afterwards:
//
//	start := time.Now()
//	err := os.WriteFile(path, data, 0o644)
//	filesystem.TrackOperation(path, "write", start, err)
func TrackOperation(path, operation string, start time.Time, err error) {
	volume := defaultResolver.Resolve(path)
	observe().ObserveOperation(volume, operation, time.Since(start).Seconds(), err)
}
