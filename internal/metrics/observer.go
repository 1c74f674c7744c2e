package metrics

import "video-ingest/internal/filesystem"

// fsObserver feeds filesystem.Observer callbacks into the Prometheus
// series declared in this package.
type fsObserver struct{}

// NewFilesystemObserver returns the production filesystem observer.
// main installs it once with filesystem.SetObserver, which keeps the
// filesystem package free of a metrics import.
func NewFilesystemObserver() filesystem.Observer {
	return fsObserver{}
}

func (fsObserver) ObserveOperation(vol, op string, seconds float64, err error) {
	FilesystemOperationDuration.WithLabelValues(vol, op).Observe(seconds)
	if err != nil {
		FilesystemOperationErrors.WithLabelValues(vol, op).Inc()
	}
}

func (fsObserver) ObserveRetryAttempt(op, vol string) {
	FilesystemRetryAttempts.WithLabelValues(op, vol).Inc()
}

func (fsObserver) ObserveRetrySuccess(op, vol string) {
	FilesystemRetrySuccess.WithLabelValues(op, vol).Inc()
}

func (fsObserver) ObserveRetryFailure(op, vol string) {
	FilesystemRetryFailures.WithLabelValues(op, vol).Inc()
}

func (fsObserver) ObserveRetryDuration(op, vol string, seconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, vol).Observe(seconds)
}

func (fsObserver) ObserveStaleError(op, vol string) {
	FilesystemStaleErrors.WithLabelValues(op, vol).Inc()
}
